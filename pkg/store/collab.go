package store

import (
	"context"
	"fmt"

	"github.com/dealforge/governor/pkg/contracts"
)

// Stakeholder roster and activity log are owned by the surrounding CRM; the
// engine reads them and the CRM sync path writes them.

// ListStakeholders returns the deal's roster.
func (s *Store) ListStakeholders(ctx context.Context, dealID string) ([]contracts.Stakeholder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contact_id, name, role, title FROM stakeholders
		WHERE deal_id = ? ORDER BY contact_id`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list stakeholders for %s: %w", dealID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.Stakeholder
	for rows.Next() {
		var (
			st   contracts.Stakeholder
			role string
		)
		if err := rows.Scan(&st.ContactID, &st.Name, &role, &st.Title); err != nil {
			return nil, err
		}
		st.Role = contracts.StakeholderRole(role)
		out = append(out, st)
	}
	return out, rows.Err()
}

// PutStakeholder creates or replaces one roster entry.
func (s *Store) PutStakeholder(ctx context.Context, dealID string, st *contracts.Stakeholder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stakeholders (deal_id, contact_id, name, role, title)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (deal_id, contact_id) DO UPDATE SET
			name = excluded.name, role = excluded.role, title = excluded.title`,
		dealID, st.ContactID, st.Name, string(st.Role), st.Title)
	if err != nil {
		return fmt.Errorf("put stakeholder %s/%s: %w", dealID, st.ContactID, err)
	}
	return nil
}

// RecentActivities returns up to limit activities, newest first.
func (s *Store) RecentActivities(ctx context.Context, dealID string, limit int) ([]contracts.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deal_id, kind, summary, occurred_at FROM activities
		WHERE deal_id = ? ORDER BY occurred_at DESC LIMIT ?`, dealID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities for %s: %w", dealID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.Activity
	for rows.Next() {
		var (
			a  contracts.Activity
			at string
		)
		if err := rows.Scan(&a.ID, &a.DealID, &a.Kind, &a.Summary, &at); err != nil {
			return nil, err
		}
		a.OccurredAt = parseTime(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AppendActivity records one activity entry.
func (s *Store) AppendActivity(ctx context.Context, a *contracts.Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, deal_id, kind, summary, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.DealID, a.Kind, a.Summary, formatTime(a.OccurredAt))
	if err != nil {
		return fmt.Errorf("append activity for %s: %w", a.DealID, err)
	}
	return nil
}
