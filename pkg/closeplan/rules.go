package closeplan

import "github.com/dealforge/governor/pkg/contracts"

// gapSpec is one entry of the fixed remediation lookup table. The table is
// part of the governance methodology and is deliberately not configurable.
type gapSpec struct {
	Title       string
	Description string
}

var gapTable = map[contracts.EvidenceCategory]gapSpec{
	contracts.CategoryMetrics: {
		Title:       "Quantify business impact",
		Description: "Work with the champion to put numbers on the value story.",
	},
	contracts.CategoryEconomicBuyer: {
		Title:       "Engage the economic buyer",
		Description: "Secure a meeting with the budget owner and confirm spending authority.",
	},
	contracts.CategoryDecisionCriteria: {
		Title:       "Document decision criteria",
		Description: "Capture the buyer's written evaluation criteria and our fit against them.",
	},
	contracts.CategoryDecisionProcess: {
		Title:       "Map the decision process",
		Description: "Identify every approval step and who signs off at each one.",
	},
	contracts.CategoryPaperProcess: {
		Title:       "Map paper process",
		Description: "Trace the contract, security and procurement paperwork path to signature.",
	},
	contracts.CategoryIdentifyPain: {
		Title:       "Validate identified pain",
		Description: "Confirm the pain with the people who feel it, not just our contact.",
	},
	contracts.CategoryChampion: {
		Title:       "Develop a champion",
		Description: "Find and equip an internal seller who wins when we win.",
	},
	contracts.CategoryCompetition: {
		Title:       "Build competitive positioning",
		Description: "Document the alternatives in play and our differentiation against each.",
	},
}

var proposalStages = map[contracts.DealStage]bool{
	contracts.StageProposal:    true,
	contracts.StageLegal:       true,
	contracts.StageProcurement: true,
}

var lateStages = map[contracts.DealStage]bool{
	contracts.StageLegal:       true,
	contracts.StageProcurement: true,
	contracts.StageCommit:      true,
}

// draft is an item before identity and persistence are attached.
type draft struct {
	Title       string
	Description string
	Category    contracts.EvidenceCategory
}

// Derive produces the remediation item list for a deal. It is a pure,
// deterministic function of its inputs: rules fire in fixed order and each
// rule's outputs keep canonical category order, so identical inputs always
// yield the identical ordered list.
func Derive(deal contracts.Deal, records []contracts.EvidenceRecord, roster []contracts.Stakeholder) []draft {
	var out []draft

	// Rule 1: one remediation item per category not yet buyer-confirmed.
	statusByCategory := make(map[contracts.EvidenceCategory]contracts.EvidenceStatus, len(records))
	for _, r := range records {
		statusByCategory[r.Category] = r.Status
	}
	for _, cat := range contracts.CanonicalCategories() {
		if statusByCategory[cat] == contracts.StatusBuyerConfirmed {
			continue
		}
		spec := gapTable[cat]
		out = append(out, draft{Title: spec.Title, Description: spec.Description, Category: cat})
	}

	// Rule 2: proposal-phase stages need the final proposal prepared.
	if proposalStages[deal.Stage] {
		out = append(out, draft{
			Title:       "Prepare final proposal",
			Description: "Assemble pricing, terms and the final proposal document.",
		})
	}

	// Rule 3: late stages need security review and legal approval, in order.
	if lateStages[deal.Stage] {
		out = append(out,
			draft{
				Title:       "Complete security review",
				Description: "Clear the buyer's security and vendor-risk questionnaire.",
			},
			draft{
				Title:       "Obtain legal approval",
				Description: "Get redlines resolved and legal sign-off on both sides.",
			})
	}

	// Rule 4: no economic buyer on the roster means one must be found.
	hasEconomicBuyer := false
	for _, st := range roster {
		if st.Role == contracts.RoleEconomicBuyer {
			hasEconomicBuyer = true
			break
		}
	}
	if !hasEconomicBuyer {
		out = append(out, draft{
			Title:       "Identify economic buyer",
			Description: "Establish who owns the budget and add them to the deal roster.",
			Category:    contracts.CategoryEconomicBuyer,
		})
	}

	return out
}
