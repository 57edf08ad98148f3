package proofpack

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dealforge/governor/pkg/contracts"
)

var titleCaser = cases.Title(language.English)

// label renders an enum constant as a human label, e.g. ECONOMIC_BUYER
// becomes "Economic Buyer".
func label(v string) string {
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(v, "_", " ")))
}

// composeSummary writes the executive summary used when the author supplies
// none: who the champion and economic buyer are, which categories are
// confirmed versus open, and how far out the close date is.
func composeSummary(deal *contracts.Deal, records []contracts.EvidenceRecord, roster []contracts.Stakeholder, riskState contracts.RiskState, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s) is in %s.", deal.Name, deal.AccountName, label(string(deal.Stage)))

	var champion, buyer string
	for _, st := range roster {
		switch st.Role {
		case contracts.RoleChampion:
			champion = st.Name
		case contracts.RoleEconomicBuyer:
			buyer = st.Name
		}
	}
	switch {
	case champion != "" && buyer != "":
		fmt.Fprintf(&b, " Champion %s and economic buyer %s are identified.", champion, buyer)
	case champion != "":
		fmt.Fprintf(&b, " Champion %s is identified; the economic buyer is not.", champion)
	case buyer != "":
		fmt.Fprintf(&b, " Economic buyer %s is identified; no champion yet.", buyer)
	default:
		b.WriteString(" Neither a champion nor an economic buyer is identified.")
	}

	statusByCat := make(map[contracts.EvidenceCategory]contracts.EvidenceStatus, len(records))
	for _, r := range records {
		statusByCat[r.Category] = r.Status
	}
	// BUYER_CONFIRMED categories are validated; MISSING and CLAIMED are gaps.
	// EVIDENCED sits between the two and is listed in neither.
	var validated, gaps []string
	for _, cat := range contracts.CanonicalCategories() {
		switch statusByCat[cat] {
		case contracts.StatusBuyerConfirmed:
			validated = append(validated, label(string(cat)))
		case contracts.StatusEvidenced:
		default:
			gaps = append(gaps, label(string(cat)))
		}
	}
	total := len(contracts.CanonicalCategories())
	fmt.Fprintf(&b, " %d of %d qualification categories are buyer confirmed.", len(validated), total)
	if len(validated) > 0 {
		fmt.Fprintf(&b, " Validated: %s.", strings.Join(validated, ", "))
	}
	if len(gaps) > 0 {
		fmt.Fprintf(&b, " Gaps: %s.", strings.Join(gaps, ", "))
	}

	if deal.CloseDate != nil {
		days := int(deal.CloseDate.Sub(now).Hours() / 24)
		switch {
		case days < 0:
			fmt.Fprintf(&b, " The close date slipped %d days ago.", -days)
		case days == 0:
			b.WriteString(" The deal closes today.")
		default:
			fmt.Fprintf(&b, " %d days to close.", days)
		}
	} else {
		b.WriteString(" No close date is set.")
	}

	if riskState != "" {
		fmt.Fprintf(&b, " Risk state: %s.", string(riskState))
	}
	return b.String()
}
