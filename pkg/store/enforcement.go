package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dealforge/governor/pkg/contracts"
)

// AppendEnforcementTransition appends one audit entry and updates the deal's
// denormalized enforcement fields in the same immediate transaction, so the
// displayed state can always be reconciled against the log. The log head is
// read under the same write lock that would append: a request for the state
// the head already carries records nothing and returns the head (second
// return false), so two concurrent identical transitions can never both
// append. Real transitions take the next per-deal sequence; a lost race on
// another connection trips the UNIQUE (deal_id, seq) index and surfaces as
// CONFLICT, keeping the log totally ordered.
func (s *Store) AppendEnforcementTransition(ctx context.Context, ev *contracts.EnforcementEvent) (*contracts.EnforcementEvent, bool, error) {
	tx, err := s.immediate(ctx)
	if err != nil {
		return nil, false, asConflict(err, "append enforcement event")
	}
	defer func() { _ = tx.Rollback() }()

	head, err := scanEnforcementEvent(tx.QueryRowContext(ctx, `
		SELECT event_id, deal_id, seq, reason, resulting_state, actor_id, at
		FROM enforcement_events WHERE deal_id = ?
		ORDER BY seq DESC LIMIT 1`, ev.DealID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	if head != nil && head.State == ev.State {
		// Nothing to record, but repair the denormalized fields in case an
		// out-of-band write left them diverged from the log.
		if err := updateDealEnforcement(ctx, tx, ev.DealID, head.State, head.Reason); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, asConflict(err, "append enforcement event")
		}
		return head, false, nil
	}

	seq := uint64(1)
	if head != nil {
		seq = head.Seq + 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO enforcement_events (event_id, deal_id, seq, reason, resulting_state, actor_id, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.DealID, seq, string(ev.Reason), string(ev.State), ev.ActorID, formatTime(ev.Timestamp)); err != nil {
		if isUniqueViolation(err) {
			return nil, false, contracts.NewConflict("enforcement log advanced concurrently, resubmit the request")
		}
		return nil, false, asConflict(err, "append enforcement event")
	}

	if err := updateDealEnforcement(ctx, tx, ev.DealID, ev.State, ev.Reason); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, asConflict(err, "append enforcement event")
	}
	ev.Seq = seq
	return ev, true, nil
}

func updateDealEnforcement(ctx context.Context, tx *sql.Tx, dealID string, state contracts.EnforcementState, reason contracts.ReasonCode) error {
	var frozen any
	if state == contracts.EnforcementFrozen {
		frozen = string(reason)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE deals SET enforcement_state = ?, frozen_reason = ? WHERE deal_id = ?`,
		string(state), frozen, dealID)
	if err != nil {
		return asConflict(err, "append enforcement event")
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return contracts.NewNotFound("deal not found")
	}
	return nil
}

// LatestEnforcementEvent returns the head of a deal's audit log, or
// (nil, nil) when nothing was ever recorded.
func (s *Store) LatestEnforcementEvent(ctx context.Context, dealID string) (*contracts.EnforcementEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, deal_id, seq, reason, resulting_state, actor_id, at
		FROM enforcement_events WHERE deal_id = ?
		ORDER BY seq DESC LIMIT 1`, dealID)
	ev, err := scanEnforcementEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ev, nil
}

// ListEnforcementEvents returns the full per-deal audit trail in append order.
func (s *Store) ListEnforcementEvents(ctx context.Context, dealID string) ([]contracts.EnforcementEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, deal_id, seq, reason, resulting_state, actor_id, at
		FROM enforcement_events WHERE deal_id = ? ORDER BY seq`, dealID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.EnforcementEvent
	for rows.Next() {
		ev, err := scanEnforcementEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func scanEnforcementEvent(row rowScanner) (*contracts.EnforcementEvent, error) {
	var (
		ev     contracts.EnforcementEvent
		reason string
		state  string
		at     string
	)
	if err := row.Scan(&ev.EventID, &ev.DealID, &ev.Seq, &reason, &state, &ev.ActorID, &at); err != nil {
		return nil, err
	}
	ev.Reason = contracts.ReasonCode(reason)
	ev.State = contracts.EnforcementState(state)
	ev.Timestamp = parseTime(at)
	return &ev, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
