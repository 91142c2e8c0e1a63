package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoIdentity marks a row that cannot be assigned a stable identity:
// company is missing and so are both title and location.
var ErrNoIdentity = eris.New("ingest: no identity-critical fields")

// IdentityKey computes the stable identity hash for a posting from its
// normalized company, title and location. When title or location is
// missing it falls back to (company, posting date) so the same posting
// scraped from multiple sources still collapses to one identity.
func IdentityKey(company, title, location, postingDate string) (string, error) {
	company = strings.ToLower(NormalizeCompany(company))
	title = strings.ToLower(NormalizeTitle(title))
	location = strings.ToLower(NormalizeLocation(location))

	if company == "" && title == "" && location == "" {
		return "", ErrNoIdentity
	}

	var key string
	if title != "" && location != "" {
		key = company + "|" + title + "|" + location
	} else if company != "" {
		key = company + "|" + strings.TrimSpace(postingDate)
	} else {
		// No company: whatever of title/location we have is the best
		// identity available.
		key = "|" + title + "|" + location
	}

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16], nil
}
