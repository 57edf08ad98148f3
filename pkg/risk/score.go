// Package risk computes the composite deal risk score. Compute is a pure
// function of a snapshot of inputs plus a policy; every invocation that is
// recorded appends a new immutable history entry, and "current" is always a
// most-recent query over that history.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/dealforge/governor/pkg/contracts"
	"github.com/dealforge/governor/pkg/evidence"
)

// Policy holds the scoring weights, caps and thresholds. Weights are
// configurable governance policy, not code; DefaultPolicy is the shipped
// baseline.
type Policy struct {
	Strengths       map[contracts.EvidenceStatus]float64 `yaml:"strengths" json:"strengths"`
	GreenThreshold  float64                              `yaml:"green_threshold" json:"green_threshold"`
	YellowThreshold float64                              `yaml:"yellow_threshold" json:"yellow_threshold"`
	Coverage        CoveragePolicy                       `yaml:"coverage" json:"coverage"`
	StagePenalty    StagePenaltyPolicy                   `yaml:"stage_penalty" json:"stage_penalty"`
	Slippage        SlippagePolicy                       `yaml:"slippage" json:"slippage"`
}

// CoveragePolicy adjusts the score for stakeholder roster coverage.
type CoveragePolicy struct {
	ChampionPresent      float64 `yaml:"champion_present" json:"champion_present"`
	ChampionAbsent       float64 `yaml:"champion_absent" json:"champion_absent"`
	EconomicBuyerPresent float64 `yaml:"economic_buyer_present" json:"economic_buyer_present"`
	EconomicBuyerAbsent  float64 `yaml:"economic_buyer_absent" json:"economic_buyer_absent"`
}

// StagePenaltyPolicy penalizes deals that overstay their stage allowance.
type StagePenaltyPolicy struct {
	PerWeekOver          float64                     `yaml:"per_week_over" json:"per_week_over"`
	Cap                  float64                     `yaml:"cap" json:"cap"`
	AllowanceDays        map[contracts.DealStage]int `yaml:"allowance_days" json:"allowance_days"`
	DefaultAllowanceDays int                         `yaml:"default_allowance_days" json:"default_allowance_days"`
}

// SlippagePolicy penalizes close dates in the past or absent entirely.
type SlippagePolicy struct {
	Base             float64 `yaml:"base" json:"base"`
	PerWeekLate      float64 `yaml:"per_week_late" json:"per_week_late"`
	Cap              float64 `yaml:"cap" json:"cap"`
	MissingCloseDate float64 `yaml:"missing_close_date" json:"missing_close_date"`
}

// DefaultPolicy returns the shipped scoring baseline. The caps are sized so
// that fully buyer-confirmed evidence with no schedule slippage always lands
// in the green band regardless of roster or stage age.
func DefaultPolicy() Policy {
	return Policy{
		Strengths: map[contracts.EvidenceStatus]float64{
			contracts.StatusMissing:        0,
			contracts.StatusClaimed:        40,
			contracts.StatusEvidenced:      75,
			contracts.StatusBuyerConfirmed: 100,
		},
		GreenThreshold:  70,
		YellowThreshold: 40,
		Coverage: CoveragePolicy{
			ChampionPresent:      5,
			ChampionAbsent:       -5,
			EconomicBuyerPresent: 5,
			EconomicBuyerAbsent:  -10,
		},
		StagePenalty: StagePenaltyPolicy{
			PerWeekOver: 2,
			Cap:         15,
			AllowanceDays: map[contracts.DealStage]int{
				contracts.StageQualification: 21,
				contracts.StageDiscovery:     30,
				contracts.StageValidation:    30,
				contracts.StageProposal:      21,
				contracts.StageLegal:         30,
				contracts.StageProcurement:   30,
				contracts.StageCommit:        14,
			},
			DefaultAllowanceDays: 30,
		},
		Slippage: SlippagePolicy{
			Base:             10,
			PerWeekLate:      2,
			Cap:              25,
			MissingCloseDate: 5,
		},
	}
}

// Inputs is the snapshot Compute scores. Evidence must be the logically
// complete ledger read (one record per category).
type Inputs struct {
	Deal         contracts.Deal
	Evidence     []contracts.EvidenceRecord
	Stakeholders []contracts.Stakeholder
	Now          time.Time
}

// Breakdown is the result of one scoring pass.
type Breakdown struct {
	Total   float64
	State   contracts.RiskState
	Factors []contracts.RiskFactor
}

// Compute derives the composite score. Identical inputs and policy always
// produce an identical breakdown.
func Compute(in Inputs, pol Policy) Breakdown {
	var factors []contracts.RiskFactor

	completeness := evidenceCompleteness(in.Evidence, pol)
	factors = append(factors, contracts.RiskFactor{
		Name:   "evidence_completeness",
		Points: completeness,
		Detail: fmt.Sprintf("average strength across %d categories", len(in.Evidence)),
	})

	coverage := coverageAdjustment(in.Stakeholders, pol.Coverage)
	factors = append(factors, contracts.RiskFactor{
		Name:   "stakeholder_coverage",
		Points: coverage,
	})

	stagePenalty := stageTimePenalty(in.Deal, in.Now, pol.StagePenalty)
	factors = append(factors, contracts.RiskFactor{
		Name:   "stage_time",
		Points: -stagePenalty,
	})

	slip := slippagePenalty(in.Deal.CloseDate, in.Now, pol.Slippage)
	factors = append(factors, contracts.RiskFactor{
		Name:   "schedule_slippage",
		Points: -slip,
	})

	total := completeness + coverage - stagePenalty - slip
	total = math.Max(0, math.Min(100, total))

	return Breakdown{
		Total:   total,
		State:   stateFor(total, pol),
		Factors: factors,
	}
}

func stateFor(total float64, pol Policy) contracts.RiskState {
	switch {
	case total >= pol.GreenThreshold:
		return contracts.RiskGreen
	case total >= pol.YellowThreshold:
		return contracts.RiskYellow
	default:
		return contracts.RiskRed
	}
}

func evidenceCompleteness(records []contracts.EvidenceRecord, pol Policy) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		if s, ok := pol.Strengths[r.Status]; ok {
			sum += s
		} else {
			sum += evidence.Strength(r.Status)
		}
	}
	return sum / float64(len(records))
}

func coverageAdjustment(roster []contracts.Stakeholder, pol CoveragePolicy) float64 {
	var hasChampion, hasEconomicBuyer bool
	for _, st := range roster {
		switch st.Role {
		case contracts.RoleChampion:
			hasChampion = true
		case contracts.RoleEconomicBuyer:
			hasEconomicBuyer = true
		}
	}
	adj := pol.ChampionAbsent
	if hasChampion {
		adj = pol.ChampionPresent
	}
	if hasEconomicBuyer {
		adj += pol.EconomicBuyerPresent
	} else {
		adj += pol.EconomicBuyerAbsent
	}
	return adj
}

func stageTimePenalty(deal contracts.Deal, now time.Time, pol StagePenaltyPolicy) float64 {
	if deal.Stage == contracts.StageClosedWon || deal.Stage == contracts.StageClosedLost {
		return 0
	}
	if deal.StageEnteredAt.IsZero() {
		return 0
	}
	allowance, ok := pol.AllowanceDays[deal.Stage]
	if !ok {
		allowance = pol.DefaultAllowanceDays
	}
	over := now.Sub(deal.StageEnteredAt).Hours()/24 - float64(allowance)
	if over <= 0 {
		return 0
	}
	return math.Min(pol.Cap, over/7*pol.PerWeekOver)
}

func slippagePenalty(closeDate *time.Time, now time.Time, pol SlippagePolicy) float64 {
	if closeDate == nil {
		return pol.MissingCloseDate
	}
	if !closeDate.Before(now) {
		return 0
	}
	daysLate := now.Sub(*closeDate).Hours() / 24
	return math.Min(pol.Cap, pol.Base+daysLate/7*pol.PerWeekLate)
}
