package enrich

import "strings"

// nonExecutivePatterns are titles that are never C-Level regardless of
// how the scraper labeled them.
var nonExecutivePatterns = []string{
	"account executive", "account director", "sales account", "account manager",
	"sales manager", "sr manager", "senior manager", "director of revenue accounting",
	"director of sales", "regional director", "area director",
	"solution sales", "solution executive",
}

var trueCLevelPatterns = []string{
	"chief revenue officer", "chief sales officer", "chief commercial officer",
	"chief growth officer", "chief business officer",
	"cro ", "cso ", "cco ", " cro", " cso",
}

var bankTitleInflation = []string{"avp,", "avp ", "assistant vice president"}

// ValidateSeniority applies compensation-based sanity corrections to a
// rule-assigned seniority tier. Bank title inflation gets demoted,
// mislabeled C-Level roles fall back to the tier their comp supports,
// and SVP/EVP below the tier's comp floor step down one level.
func ValidateSeniority(title, seniority string, compMax float64) string {
	t := " " + strings.ToLower(title) + " "

	for _, p := range bankTitleInflation {
		if strings.Contains(t, p) {
			if compMax < 200000 {
				return "Non-Executive"
			}
			return "VP"
		}
	}

	if seniority == "C-Level" {
		for _, p := range nonExecutivePatterns {
			if strings.Contains(t, p) {
				if compMax >= 250000 {
					return "VP"
				}
				return "Non-Executive"
			}
		}
		trueC := false
		for _, p := range trueCLevelPatterns {
			if strings.Contains(t, p) {
				trueC = true
				break
			}
		}
		// Undisclosed comp can't confirm or deny the tier; leave it.
		if !trueC && compMax > 0 {
			switch {
			case compMax >= 300000:
				return "C-Level"
			case compMax >= 200000:
				return "SVP"
			default:
				return "VP"
			}
		}
	}

	if seniority == "SVP" && compMax > 0 && compMax < 150000 {
		return "VP"
	}
	if seniority == "EVP" && compMax > 0 && compMax < 200000 {
		return "SVP"
	}

	return seniority
}
