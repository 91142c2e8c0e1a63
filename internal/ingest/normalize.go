package ingest

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CleanText collapses runs of whitespace (including non-breaking spaces)
// into single spaces and trims the result.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeCompany cleans a company name and fixes shouting or all-lower
// names into canonical title case. Mixed-case names are left alone so
// brands like "HubSpot" survive.
func NormalizeCompany(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return titleCaser.String(strings.ToLower(s))
	}
	return s
}

// NormalizeTitle cleans a job title for display and matching.
func NormalizeTitle(s string) string {
	return CleanText(s)
}

// NormalizeLocation cleans a location string and deduplicates repeated
// comma-separated parts ("Remote, Remote" → "Remote").
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	parts := strings.Split(loc, ",")
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// TitleTokens returns the lowercase word set of a normalized title, with
// punctuation stripped. Used for near-duplicate overlap scoring.
func TitleTokens(title string) map[string]bool {
	title = strings.ToLower(CleanText(title))
	title = strings.NewReplacer(",", " ", "/", " ", "-", " ", "(", " ", ")", " ", "&", " ").Replace(title)

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(title) {
		tokens[tok] = true
	}
	return tokens
}
