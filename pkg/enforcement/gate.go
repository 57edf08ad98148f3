// Package enforcement gates governed deal mutations behind the deal's
// enforcement state. Every ACTIVE/FROZEN transition appends exactly one
// audit event; the event log is the trail of record and the deal row only
// carries a denormalized copy for cheap reads.
package enforcement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealforge/governor/pkg/contracts"
)

// GateStore is the persistence surface the gate needs.
type GateStore interface {
	GetDeal(ctx context.Context, dealID string) (*contracts.Deal, error)
	AppendEnforcementTransition(ctx context.Context, ev *contracts.EnforcementEvent) (*contracts.EnforcementEvent, bool, error)
	LatestEnforcementEvent(ctx context.Context, dealID string) (*contracts.EnforcementEvent, error)
	ListEnforcementEvents(ctx context.Context, dealID string) ([]contracts.EnforcementEvent, error)
	PatchStage(ctx context.Context, dealID string, stage contracts.DealStage, enteredAt time.Time) error
	PatchForecast(ctx context.Context, dealID string, fc contracts.ForecastCategory) error
	PatchAmount(ctx context.Context, dealID string, amount contracts.Micros) error
}

// TriggerEvaluator decides whether a freshly computed risk score should
// auto-freeze a deal. Implemented by the policy engine; nil disables
// automatic freezes entirely.
type TriggerEvaluator interface {
	Evaluate(deal contracts.Deal, score contracts.RiskScore) (contracts.ReasonCode, bool, error)
}

// Gate enforces the ACTIVE/FROZEN state machine.
type Gate struct {
	store    GateStore
	triggers TriggerEvaluator
	logger   *slog.Logger
	clock    func() time.Time
}

// NewGate creates a gate. triggers may be nil when no auto-freeze policy is
// configured.
func NewGate(store GateStore, triggers TriggerEvaluator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, triggers: triggers, logger: logger, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// Guard fails closed when the deal is FROZEN. The audit log is authoritative:
// the denormalized deal field is checked against the log head, a divergence
// is reported as a data-integrity warning, and the mutation is blocked when
// either source reports FROZEN. The returned fault carries the active reason
// code so callers can render remediation guidance.
func (g *Gate) Guard(ctx context.Context, dealID string, capability contracts.Capability) error {
	deal, err := g.store.GetDeal(ctx, dealID)
	if err != nil {
		return err
	}
	head, err := g.store.LatestEnforcementEvent(ctx, dealID)
	if err != nil {
		return err
	}

	logical := contracts.EnforcementActive
	if head != nil {
		logical = head.State
	}
	if deal.Enforcement != logical {
		g.logger.Warn("enforcement state diverged from audit log",
			"deal_id", dealID,
			"deal_field", string(deal.Enforcement),
			"log_head", string(logical),
			"capability", string(capability))
	}

	frozenByLog := logical == contracts.EnforcementFrozen
	if !frozenByLog && deal.Enforcement != contracts.EnforcementFrozen {
		return nil
	}
	reason := deal.FrozenReason
	if frozenByLog {
		reason = head.Reason
	}
	return contracts.NewEnforcement(
		fmt.Sprintf("deal %s is frozen, %s is blocked", dealID, string(capability)), reason)
}

// SetState drives the state machine. A freeze requires a reason; requesting
// the state the log head already carries appends nothing and returns that
// head. The same-state check runs inside the append transaction, under the
// write lock, so two concurrent identical requests can never both append.
// Each real transition appends exactly one event and updates the denormalized
// deal fields in the same transaction.
func (g *Gate) SetState(ctx context.Context, dealID string, state contracts.EnforcementState, reason contracts.ReasonCode, actorID string) (*contracts.EnforcementEvent, error) {
	if state == contracts.EnforcementFrozen && reason == "" {
		return nil, contracts.NewValidation("freezing a deal requires a reason code")
	}

	ev := &contracts.EnforcementEvent{
		EventID:   uuid.New().String(),
		DealID:    dealID,
		Reason:    reason,
		State:     state,
		ActorID:   actorID,
		Timestamp: g.clock(),
	}
	head, appended, err := g.store.AppendEnforcementTransition(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !appended {
		return head, nil
	}

	g.logger.Info("enforcement state changed",
		"deal_id", dealID,
		"state", string(state),
		"reason", string(reason),
		"seq", head.Seq,
		"actor_id", actorID)
	return head, nil
}

// ChangeStage applies a gated stage change and resets the time-in-stage
// clock.
func (g *Gate) ChangeStage(ctx context.Context, dealID string, stage contracts.DealStage, actorID string) error {
	if err := g.Guard(ctx, dealID, contracts.CapStageChange); err != nil {
		return err
	}
	if err := g.store.PatchStage(ctx, dealID, stage, g.clock()); err != nil {
		return err
	}
	g.logger.Info("deal stage changed", "deal_id", dealID, "stage", string(stage), "actor_id", actorID)
	return nil
}

// ChangeForecast applies a gated forecast category change.
func (g *Gate) ChangeForecast(ctx context.Context, dealID string, fc contracts.ForecastCategory, actorID string) error {
	if err := g.Guard(ctx, dealID, contracts.CapForecastChange); err != nil {
		return err
	}
	if err := g.store.PatchForecast(ctx, dealID, fc); err != nil {
		return err
	}
	g.logger.Info("deal forecast changed", "deal_id", dealID, "forecast", string(fc), "actor_id", actorID)
	return nil
}

// ChangeAmount applies a gated amount change.
func (g *Gate) ChangeAmount(ctx context.Context, dealID string, amount contracts.Micros, actorID string) error {
	if err := g.Guard(ctx, dealID, contracts.CapAmountChange); err != nil {
		return err
	}
	if err := g.store.PatchAmount(ctx, dealID, amount); err != nil {
		return err
	}
	g.logger.Info("deal amount changed", "deal_id", dealID, "amount_micros", int64(amount), "actor_id", actorID)
	return nil
}

// ApplyRiskTriggers evaluates the configured auto-freeze rules against a
// fresh risk score and freezes the deal when one fires. Already frozen deals
// are left alone so a manual freeze reason is never overwritten. Returns
// whether a freeze was applied.
func (g *Gate) ApplyRiskTriggers(ctx context.Context, dealID string, score *contracts.RiskScore) (bool, error) {
	if g.triggers == nil || score == nil {
		return false, nil
	}
	deal, err := g.store.GetDeal(ctx, dealID)
	if err != nil {
		return false, err
	}
	if deal.Enforcement == contracts.EnforcementFrozen {
		return false, nil
	}

	reason, fire, err := g.triggers.Evaluate(*deal, *score)
	if err != nil {
		return false, fmt.Errorf("evaluate freeze triggers: %w", err)
	}
	if !fire {
		return false, nil
	}
	if _, err := g.SetState(ctx, dealID, contracts.EnforcementFrozen, reason, "policy"); err != nil {
		return false, err
	}
	g.logger.Warn("auto-freeze trigger fired",
		"deal_id", dealID,
		"reason", string(reason),
		"risk_total", score.Total,
		"risk_state", string(score.State))
	return true, nil
}

// Reconcile compares the deal's denormalized enforcement field against the
// log head. The log is authoritative; a divergent field is reported as a
// data-integrity warning, never silently trusted. Returns true when the two
// disagree.
func (g *Gate) Reconcile(ctx context.Context, dealID string) (bool, error) {
	deal, err := g.store.GetDeal(ctx, dealID)
	if err != nil {
		return false, err
	}
	head, err := g.store.LatestEnforcementEvent(ctx, dealID)
	if err != nil {
		return false, err
	}

	logical := contracts.EnforcementActive
	if head != nil {
		logical = head.State
	}
	if deal.Enforcement == logical {
		return false, nil
	}

	g.logger.Warn("enforcement state diverged from audit log",
		"deal_id", dealID,
		"deal_field", string(deal.Enforcement),
		"log_head", string(logical))
	return true, nil
}

// History returns the deal's full audit trail in append order.
func (g *Gate) History(ctx context.Context, dealID string) ([]contracts.EnforcementEvent, error) {
	return g.store.ListEnforcementEvents(ctx, dealID)
}
