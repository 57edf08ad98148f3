// Package contracts holds the shared domain types of the deal governance
// engine: deals, qualification evidence, close plans, risk-score history,
// enforcement events and proof-pack snapshots, plus the closed enumerations
// and the error taxonomy every component speaks.
package contracts

import "time"

// Deal carries the governance-relevant view of a CRM deal. The surrounding
// CRM owns the record; the engine only reads it and patches the fields the
// enforcement gate governs.
type Deal struct {
	ID               string           `json:"deal_id"`
	Name             string           `json:"name"`
	AccountName      string           `json:"account_name"`
	Stage            DealStage        `json:"stage"`
	Forecast         ForecastCategory `json:"forecast_category"`
	CloseDate        *time.Time       `json:"close_date,omitempty"`
	Amount           Micros           `json:"amount_micros"`
	Enforcement      EnforcementState `json:"enforcement_state"`
	FrozenReason     ReasonCode       `json:"frozen_reason,omitempty"`
	StageEnteredAt   time.Time        `json:"stage_entered_at"`
	OwnerID          string           `json:"owner_id,omitempty"`
}

// EvidenceRecord is the single qualification record for a (deal, category)
// pair. Absent records are logically MISSING.
type EvidenceRecord struct {
	DealID    string           `json:"deal_id"`
	Category  EvidenceCategory `json:"category"`
	Status    EvidenceStatus   `json:"status"`
	Refs      []string         `json:"refs,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	EditorID  string           `json:"editor_id,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ClosePlan is the at-most-one remediation plan for a deal.
type ClosePlan struct {
	PlanID          string          `json:"plan_id"`
	DealID          string          `json:"deal_id"`
	TargetCloseDate *time.Time      `json:"target_close_date,omitempty"`
	Items           []ClosePlanItem `json:"items"`
	GeneratedAt     time.Time       `json:"generated_at"`
	GeneratedBy     string          `json:"generated_by,omitempty"`
}

// ClosePlanItem is one ordered remediation step. SortOrder is unique and
// total within a plan.
type ClosePlanItem struct {
	ItemID      string           `json:"item_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Category    EvidenceCategory `json:"category,omitempty"`
	SortOrder   int              `json:"sort_order"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	OwnerID     string           `json:"owner_id,omitempty"`
	Status      PlanItemStatus   `json:"status"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	TaskRefs    []string         `json:"task_refs,omitempty"`
}

// RiskFactor is one contribution to the composite score.
type RiskFactor struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
	Detail string  `json:"detail,omitempty"`
}

// RiskScore is one append-only history entry. Entries are never mutated;
// "current" is the entry with the latest ComputedAt.
type RiskScore struct {
	ScoreID    string       `json:"score_id"`
	DealID     string       `json:"deal_id"`
	Total      float64      `json:"total"`
	State      RiskState    `json:"state"`
	Factors    []RiskFactor `json:"factors"`
	ComputedAt time.Time    `json:"computed_at"`
}

// EnforcementEvent is one append-only audit entry. Seq is totally ordered per
// deal; the event log is the audit trail of record.
type EnforcementEvent struct {
	EventID   string           `json:"event_id"`
	DealID    string           `json:"deal_id"`
	Seq       uint64           `json:"seq"`
	Reason    ReasonCode       `json:"reason"`
	State     EnforcementState `json:"resulting_state"`
	ActorID   string           `json:"actor_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Stakeholder is a contact on the deal's roster, supplied by the CRM.
type Stakeholder struct {
	ContactID string          `json:"contact_id"`
	Name      string          `json:"name"`
	Role      StakeholderRole `json:"role"`
	Title     string          `json:"title,omitempty"`
}

// Activity is one entry of the deal's activity log, supplied by the CRM.
type Activity struct {
	ID         string    `json:"id"`
	DealID     string    `json:"deal_id"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProofPackSnapshot is the immutable point-in-time artifact of a deal's
// qualification state. Written once, never edited.
type ProofPackSnapshot struct {
	PackID         string           `json:"pack_id"`
	DealID         string           `json:"deal_id"`
	DealName       string           `json:"deal_name"`
	AccountName    string           `json:"account_name"`
	Amount         Micros           `json:"amount_micros"`
	Stage          DealStage        `json:"stage"`
	CloseDate      *time.Time       `json:"close_date,omitempty"`
	Evidence       []EvidenceRecord `json:"evidence"`
	Stakeholders   []Stakeholder    `json:"stakeholders"`
	RecentActivity []Activity       `json:"recent_activity"`
	WinProbability int              `json:"win_probability"`
	RiskTotal      float64          `json:"risk_total"`
	RiskState      RiskState        `json:"risk_state"`
	Summary        string           `json:"executive_summary"`
	ContentHash    string           `json:"content_hash,omitempty"`
	GeneratedBy    string           `json:"generated_by"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
