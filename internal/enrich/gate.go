package enrich

import "strings"

// Gate is the seniority-gate vocabulary: what counts as an executive
// sales title and what is excluded outright. Configurable so the board's
// editorial judgment lives in data, not code.
type Gate struct {
	SalesKeywords     []string `yaml:"sales_keywords"`
	ExecutiveTitles   []string `yaml:"executive_titles"`
	ExecutiveAcronyms []string `yaml:"executive_acronyms"`
	VPPatterns        []string `yaml:"vp_patterns"`
	BankingExclusions []string `yaml:"banking_exclusions"`
	ICExclusions      []string `yaml:"ic_exclusions"`
}

func defaultGate() Gate {
	return Gate{
		SalesKeywords: []string{"sales", "revenue", "cro", "chief revenue", "commercial", "business development"},
		ExecutiveTitles: []string{
			"chief revenue officer", "chief sales officer", "chief commercial officer",
			"chief business officer", "chief business development officer", "chief growth officer",
		},
		ExecutiveAcronyms: []string{"cro", "cso", "cco", "cbo"},
		VPPatterns:        []string{"executive vice president", "senior vice president", "vice president"},
		BankingExclusions: []string{
			"relationship manager", "commercial banker", "commercial bank ", "commercial bank-",
			"private banker", "business banker", "commercial card", "treasury management",
			"loan officer", "credit officer", "portfolio manager", "wealth advisor",
			"financial advisor", "investment banker", "middle market bank", "emerging middle market",
		},
		ICExclusions: []string{"account executive", "account manager", "account director"},
	}
}

// IsExecutiveSalesRole reports whether a title belongs on the board:
// VP-and-above or C-suite, with a sales/revenue focus. Individual
// contributor roles, bank title inflation and unrelated functions are
// excluded entirely.
func (g Gate) IsExecutiveSalesRole(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return false
	}
	padded := " " + t + " "

	// Banking IC titles masquerade as executives unless genuinely chief-level.
	for _, p := range g.BankingExclusions {
		if strings.Contains(t, p) && !strings.Contains(t, "chief") && !strings.Contains(t, "head of") {
			return false
		}
	}

	// Individual contributor exclusions.
	for _, p := range g.ICExclusions {
		if strings.Contains(t, p) {
			return false
		}
	}
	hasVP := strings.Contains(t, "vice president") || strings.Contains(padded, " vp ") ||
		strings.Contains(t, "vp,") || strings.Contains(t, "vp of")
	if (strings.Contains(t, "director") || strings.Contains(t, "manager")) && !hasVP {
		return false
	}

	// Assistant VP is a bank grade, not an executive.
	if strings.Contains(t, "assistant vice president") || strings.HasPrefix(t, "avp") ||
		strings.Contains(padded, " avp ") || strings.Contains(t, "avp,") {
		return false
	}

	// C-suite revenue titles are sales-focused by definition.
	for _, c := range g.ExecutiveTitles {
		if strings.Contains(t, c) {
			return true
		}
	}
	for _, a := range g.ExecutiveAcronyms {
		if strings.Contains(padded, " "+a+" ") || strings.Contains(padded, " "+a+",") {
			return true
		}
	}

	// VP-level titles need an explicit sales/revenue focus.
	executive := false
	for _, vp := range g.VPPatterns {
		if strings.Contains(t, vp) {
			executive = true
			break
		}
	}
	if !executive {
		for _, acr := range []string{"evp", "svp", "vp"} {
			if strings.Contains(padded, " "+acr+" ") || strings.Contains(t, acr+",") || strings.Contains(t, acr+" of") {
				executive = true
				break
			}
		}
	}
	if !executive {
		return false
	}

	// Must have a sales/revenue focus. "Commercial" counts except in the
	// banking sense.
	focus := []string{"sales", "revenue", "business development"}
	if strings.Contains(t, "commercial") {
		banking := false
		for _, b := range []string{"commercial bank", "commercial card", "commercial lend", "commercial credit"} {
			if strings.Contains(t, b) {
				banking = true
				break
			}
		}
		if !banking {
			focus = append(focus, "commercial")
		}
	}
	for _, f := range focus {
		if strings.Contains(t, f) {
			return true
		}
	}
	return false
}
