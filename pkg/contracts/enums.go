package contracts

import "fmt"

// EvidenceCategory is one of the fixed qualification dimensions tracked per
// deal. The domain is closed; CanonicalCategories is the iteration order
// everywhere determinism matters.
type EvidenceCategory string

const (
	CategoryMetrics          EvidenceCategory = "METRICS"
	CategoryEconomicBuyer    EvidenceCategory = "ECONOMIC_BUYER"
	CategoryDecisionCriteria EvidenceCategory = "DECISION_CRITERIA"
	CategoryDecisionProcess  EvidenceCategory = "DECISION_PROCESS"
	CategoryPaperProcess     EvidenceCategory = "PAPER_PROCESS"
	CategoryIdentifyPain     EvidenceCategory = "IDENTIFY_PAIN"
	CategoryChampion         EvidenceCategory = "CHAMPION"
	CategoryCompetition      EvidenceCategory = "COMPETITION"
)

// CanonicalCategories lists every evidence category in canonical order.
func CanonicalCategories() []EvidenceCategory {
	return []EvidenceCategory{
		CategoryMetrics,
		CategoryEconomicBuyer,
		CategoryDecisionCriteria,
		CategoryDecisionProcess,
		CategoryPaperProcess,
		CategoryIdentifyPain,
		CategoryChampion,
		CategoryCompetition,
	}
}

// ParseEvidenceCategory validates a wire value against the closed domain.
func ParseEvidenceCategory(s string) (EvidenceCategory, error) {
	for _, c := range CanonicalCategories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", NewValidation(fmt.Sprintf("unknown evidence category %q", s))
}

// EvidenceStatus is the per-category qualification status.
type EvidenceStatus string

const (
	StatusMissing        EvidenceStatus = "MISSING"
	StatusClaimed        EvidenceStatus = "CLAIMED"
	StatusEvidenced      EvidenceStatus = "EVIDENCED"
	StatusBuyerConfirmed EvidenceStatus = "BUYER_CONFIRMED"
)

// ParseEvidenceStatus validates a wire value against the closed domain.
func ParseEvidenceStatus(s string) (EvidenceStatus, error) {
	switch EvidenceStatus(s) {
	case StatusMissing, StatusClaimed, StatusEvidenced, StatusBuyerConfirmed:
		return EvidenceStatus(s), nil
	}
	return "", NewValidation(fmt.Sprintf("unknown evidence status %q", s))
}

// DealStage is the pipeline stage of a deal.
type DealStage string

const (
	StageQualification DealStage = "QUALIFICATION"
	StageDiscovery     DealStage = "DISCOVERY"
	StageValidation    DealStage = "VALIDATION"
	StageProposal      DealStage = "PROPOSAL"
	StageLegal         DealStage = "LEGAL"
	StageProcurement   DealStage = "PROCUREMENT"
	StageCommit        DealStage = "COMMIT"
	StageClosedWon     DealStage = "CLOSED_WON"
	StageClosedLost    DealStage = "CLOSED_LOST"
)

// ParseDealStage validates a wire value against the closed domain.
func ParseDealStage(s string) (DealStage, error) {
	switch DealStage(s) {
	case StageQualification, StageDiscovery, StageValidation, StageProposal,
		StageLegal, StageProcurement, StageCommit, StageClosedWon, StageClosedLost:
		return DealStage(s), nil
	}
	return "", NewValidation(fmt.Sprintf("unknown deal stage %q", s))
}

// ForecastCategory classifies a deal for forecasting.
type ForecastCategory string

const (
	ForecastPipeline ForecastCategory = "PIPELINE"
	ForecastBestCase ForecastCategory = "BEST_CASE"
	ForecastCommit   ForecastCategory = "COMMIT"
	ForecastOmitted  ForecastCategory = "OMITTED"
	ForecastClosed   ForecastCategory = "CLOSED"
)

// ParseForecastCategory validates a wire value against the closed domain.
func ParseForecastCategory(s string) (ForecastCategory, error) {
	switch ForecastCategory(s) {
	case ForecastPipeline, ForecastBestCase, ForecastCommit, ForecastOmitted, ForecastClosed:
		return ForecastCategory(s), nil
	}
	return "", NewValidation(fmt.Sprintf("unknown forecast category %q", s))
}

// StakeholderRole is the role a contact plays in a deal.
type StakeholderRole string

const (
	RoleChampion         StakeholderRole = "CHAMPION"
	RoleEconomicBuyer    StakeholderRole = "ECONOMIC_BUYER"
	RoleTechnicalBuyer   StakeholderRole = "TECHNICAL_BUYER"
	RoleExecutiveSponsor StakeholderRole = "EXECUTIVE_SPONSOR"
	RoleInfluencer       StakeholderRole = "INFLUENCER"
	RoleEndUser          StakeholderRole = "END_USER"
	RoleBlocker          StakeholderRole = "BLOCKER"
)

// PlanItemStatus is the workflow status of a close-plan item.
type PlanItemStatus string

const (
	ItemPending    PlanItemStatus = "PENDING"
	ItemInProgress PlanItemStatus = "IN_PROGRESS"
	ItemComplete   PlanItemStatus = "COMPLETE"
	ItemBlocked    PlanItemStatus = "BLOCKED"
)

// ParsePlanItemStatus validates a wire value against the closed domain.
func ParsePlanItemStatus(s string) (PlanItemStatus, error) {
	switch PlanItemStatus(s) {
	case ItemPending, ItemInProgress, ItemComplete, ItemBlocked:
		return PlanItemStatus(s), nil
	}
	return "", NewValidation(fmt.Sprintf("unknown plan item status %q", s))
}

// RiskState is the coarse classification derived from the composite score.
type RiskState string

const (
	RiskGreen  RiskState = "GREEN"
	RiskYellow RiskState = "YELLOW"
	RiskRed    RiskState = "RED"
)

// EnforcementState is the gate state of a deal.
type EnforcementState string

const (
	EnforcementActive EnforcementState = "ACTIVE"
	EnforcementFrozen EnforcementState = "FROZEN"
)

// ParseEnforcementState validates a wire value against the closed domain.
func ParseEnforcementState(s string) (EnforcementState, error) {
	switch EnforcementState(s) {
	case EnforcementActive, EnforcementFrozen:
		return EnforcementState(s), nil
	}
	return "", NewValidation(fmt.Sprintf("unknown enforcement state %q", s))
}

// ReasonCode explains a freeze or unfreeze transition.
type ReasonCode string

const (
	ReasonManualFreeze         ReasonCode = "MANUAL_FREEZE"
	ReasonRiskRed              ReasonCode = "RISK_RED"
	ReasonMissingEconomicBuyer ReasonCode = "MISSING_ECONOMIC_BUYER"
	ReasonStaleEvidence        ReasonCode = "STALE_EVIDENCE"
	ReasonSlippedCloseDate     ReasonCode = "SLIPPED_CLOSE_DATE"
	ReasonComplianceHold       ReasonCode = "COMPLIANCE_HOLD"
	ReasonRemediated           ReasonCode = "REMEDIATED"
	ReasonManualClear          ReasonCode = "MANUAL_CLEAR"
)

// ParseReasonCode validates a wire value against the closed domain.
func ParseReasonCode(s string) (ReasonCode, error) {
	switch ReasonCode(s) {
	case ReasonManualFreeze, ReasonRiskRed, ReasonMissingEconomicBuyer,
		ReasonStaleEvidence, ReasonSlippedCloseDate, ReasonComplianceHold,
		ReasonRemediated, ReasonManualClear:
		return ReasonCode(s), nil
	}
	return "", NewValidation(fmt.Sprintf("unknown reason code %q", s))
}

// Capability identifies a gated deal mutation.
type Capability string

const (
	CapStageChange    Capability = "STAGE_CHANGE"
	CapForecastChange Capability = "FORECAST_CHANGE"
	CapAmountChange   Capability = "AMOUNT_CHANGE"
)
