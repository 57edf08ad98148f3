package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dealforge/governor/pkg/contracts"
)

// GetPlan loads a deal's plan with its items in sort order.
func (s *Store) GetPlan(ctx context.Context, dealID string) (*contracts.ClosePlan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT plan_id, deal_id, target_close_date, generated_at, generated_by
		FROM close_plans WHERE deal_id = ?`, dealID)

	var (
		p           contracts.ClosePlan
		target      sql.NullString
		generatedAt string
	)
	if err := row.Scan(&p.PlanID, &p.DealID, &target, &generatedAt, &p.GeneratedBy); err != nil {
		return nil, notFound(err, "close plan")
	}
	p.TargetCloseDate = parseTimePtr(target)
	p.GeneratedAt = parseTime(generatedAt)

	items, err := s.listItems(ctx, p.PlanID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

func (s *Store) listItems(ctx context.Context, planID string) ([]contracts.ClosePlanItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, title, description, category, sort_order, due_date,
		       owner_id, status, completed_at, task_refs
		FROM close_plan_items WHERE plan_id = ? ORDER BY sort_order`, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []contracts.ClosePlanItem
	for rows.Next() {
		var (
			it          contracts.ClosePlanItem
			category    string
			due         sql.NullString
			status      string
			completedAt sql.NullString
			taskRefs    string
		)
		if err := rows.Scan(&it.ItemID, &it.Title, &it.Description, &category, &it.SortOrder,
			&due, &it.OwnerID, &status, &completedAt, &taskRefs); err != nil {
			return nil, err
		}
		it.Category = contracts.EvidenceCategory(category)
		it.DueDate = parseTimePtr(due)
		it.Status = contracts.PlanItemStatus(status)
		it.CompletedAt = parseTimePtr(completedAt)
		it.TaskRefs = splitRefs(taskRefs)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ReplacePlan atomically discards the deal's previous plan (items included)
// and writes the new one. A reader never observes a partially replaced plan;
// lock contention surfaces as a CONFLICT fault and the caller resubmits the
// whole generation request.
func (s *Store) ReplacePlan(ctx context.Context, p *contracts.ClosePlan) error {
	tx, err := s.immediate(ctx)
	if err != nil {
		return asConflict(err, "replace plan")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM close_plan_items WHERE deal_id = ?`, p.DealID); err != nil {
		return asConflict(err, "replace plan")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM close_plans WHERE deal_id = ?`, p.DealID); err != nil {
		return asConflict(err, "replace plan")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO close_plans (deal_id, plan_id, target_close_date, generated_at, generated_by)
		VALUES (?, ?, ?, ?, ?)`,
		p.DealID, p.PlanID, formatTimePtr(p.TargetCloseDate), formatTime(p.GeneratedAt), p.GeneratedBy); err != nil {
		return asConflict(err, "replace plan")
	}
	for _, it := range p.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO close_plan_items (item_id, plan_id, deal_id, title, description, category,
			                              sort_order, due_date, owner_id, status, completed_at, task_refs)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ItemID, p.PlanID, p.DealID, it.Title, it.Description, string(it.Category),
			it.SortOrder, formatTimePtr(it.DueDate), it.OwnerID, string(it.Status),
			formatTimePtr(it.CompletedAt), joinRefs(it.TaskRefs)); err != nil {
			return asConflict(err, "replace plan")
		}
	}
	if err := tx.Commit(); err != nil {
		return asConflict(err, "replace plan")
	}
	return nil
}

// GetItem loads one plan item by ID.
func (s *Store) GetItem(ctx context.Context, itemID string) (*contracts.ClosePlanItem, string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_id, deal_id, title, description, category, sort_order, due_date,
		       owner_id, status, completed_at, task_refs
		FROM close_plan_items WHERE item_id = ?`, itemID)

	var (
		it          contracts.ClosePlanItem
		dealID      string
		category    string
		due         sql.NullString
		status      string
		completedAt sql.NullString
		taskRefs    string
	)
	err := row.Scan(&it.ItemID, &dealID, &it.Title, &it.Description, &category, &it.SortOrder,
		&due, &it.OwnerID, &status, &completedAt, &taskRefs)
	if err != nil {
		return nil, "", notFound(err, "plan item")
	}
	it.Category = contracts.EvidenceCategory(category)
	it.DueDate = parseTimePtr(due)
	it.Status = contracts.PlanItemStatus(status)
	it.CompletedAt = parseTimePtr(completedAt)
	it.TaskRefs = splitRefs(taskRefs)
	return &it, dealID, nil
}

// UpdateItem persists a mutated plan item.
func (s *Store) UpdateItem(ctx context.Context, it *contracts.ClosePlanItem) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE close_plan_items
		SET title = ?, description = ?, due_date = ?, owner_id = ?, status = ?,
		    completed_at = ?, task_refs = ?
		WHERE item_id = ?`,
		it.Title, it.Description, formatTimePtr(it.DueDate), it.OwnerID,
		string(it.Status), formatTimePtr(it.CompletedAt), joinRefs(it.TaskRefs), it.ItemID)
	if err != nil {
		return fmt.Errorf("update plan item %s: %w", it.ItemID, asConflict(err, "update plan item"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return contracts.NewNotFound("plan item not found")
	}
	return nil
}
