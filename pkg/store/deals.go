package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dealforge/governor/pkg/contracts"
)

// GetDeal loads the governance view of a deal.
func (s *Store) GetDeal(ctx context.Context, dealID string) (*contracts.Deal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT deal_id, name, account_name, stage, forecast_category, close_date,
		       amount_micros, enforcement_state, frozen_reason, stage_entered_at, owner_id
		FROM deals WHERE deal_id = ?`, dealID)
	return scanDeal(row)
}

// PutDeal creates or replaces a deal row. The CRM collaborator calls this
// when syncing deal attributes into the governance datastore.
func (s *Store) PutDeal(ctx context.Context, d *contracts.Deal) error {
	var frozen any
	if d.FrozenReason != "" {
		frozen = string(d.FrozenReason)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (deal_id, name, account_name, stage, forecast_category, close_date,
		                   amount_micros, enforcement_state, frozen_reason, stage_entered_at, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (deal_id) DO UPDATE SET
			name = excluded.name,
			account_name = excluded.account_name,
			stage = excluded.stage,
			forecast_category = excluded.forecast_category,
			close_date = excluded.close_date,
			amount_micros = excluded.amount_micros,
			enforcement_state = excluded.enforcement_state,
			frozen_reason = excluded.frozen_reason,
			stage_entered_at = excluded.stage_entered_at,
			owner_id = excluded.owner_id`,
		d.ID, d.Name, d.AccountName, string(d.Stage), string(d.Forecast),
		formatTimePtr(d.CloseDate), int64(d.Amount), string(d.Enforcement),
		frozen, formatTime(d.StageEnteredAt), d.OwnerID)
	if err != nil {
		return fmt.Errorf("put deal %s: %w", d.ID, asConflict(err, "put deal"))
	}
	return nil
}

// PatchStage updates the stage and resets the time-in-stage clock.
func (s *Store) PatchStage(ctx context.Context, dealID string, stage contracts.DealStage, enteredAt time.Time) error {
	return s.patchDeal(ctx, dealID, `stage = ?, stage_entered_at = ?`, string(stage), formatTime(enteredAt))
}

// PatchForecast updates the forecast category.
func (s *Store) PatchForecast(ctx context.Context, dealID string, fc contracts.ForecastCategory) error {
	return s.patchDeal(ctx, dealID, `forecast_category = ?`, string(fc))
}

// PatchAmount updates the monetary amount.
func (s *Store) PatchAmount(ctx context.Context, dealID string, amount contracts.Micros) error {
	return s.patchDeal(ctx, dealID, `amount_micros = ?`, int64(amount))
}

func (s *Store) patchDeal(ctx context.Context, dealID, set string, args ...any) error {
	args = append(args, dealID)
	res, err := s.db.ExecContext(ctx, `UPDATE deals SET `+set+` WHERE deal_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("patch deal %s: %w", dealID, asConflict(err, "patch deal"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return contracts.NewNotFound("deal not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (*contracts.Deal, error) {
	var (
		d         contracts.Deal
		stage     string
		forecast  string
		closeDate sql.NullString
		amount    int64
		state     string
		frozen    sql.NullString
		enteredAt string
	)
	err := row.Scan(&d.ID, &d.Name, &d.AccountName, &stage, &forecast, &closeDate,
		&amount, &state, &frozen, &enteredAt, &d.OwnerID)
	if err != nil {
		return nil, notFound(err, "deal")
	}
	d.Stage = contracts.DealStage(stage)
	d.Forecast = contracts.ForecastCategory(forecast)
	d.CloseDate = parseTimePtr(closeDate)
	d.Amount = contracts.Micros(amount)
	d.Enforcement = contracts.EnforcementState(state)
	if frozen.Valid {
		d.FrozenReason = contracts.ReasonCode(frozen.String)
	}
	d.StageEnteredAt = parseTime(enteredAt)
	return &d, nil
}
