// Package ingest parses raw weekly scrape exports into canonical job
// records with stable identities. Every function here is a pure function
// of its input so re-running ingestion over the same batch yields
// identical output.
package ingest

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/cro-report/jobs-cli/internal/model"
)

// Reject describes a row excluded from the batch, with the reason logged
// by the caller. Rows are never dropped silently.
type Reject struct {
	Line   int
	Reason string
}

// BuildRecord normalizes one raw row into a canonical JobRecord for the
// given snapshot date. An unparseable salary keeps the record with
// disclosed=false; a row with no safe identity is rejected.
func BuildRecord(raw RawScan, snapshotDate time.Time, batchID string) (model.JobRecord, *Reject) {
	company := NormalizeCompany(raw.Company)
	title := NormalizeTitle(raw.Title)
	location := NormalizeLocation(raw.Location)

	id, err := IdentityKey(company, title, location, raw.PostingDate)
	if err != nil {
		return model.JobRecord{}, &Reject{Line: raw.Line, Reason: eris.Cause(err).Error()}
	}

	rec := model.JobRecord{
		ID:            id,
		Company:       company,
		Title:         title,
		Location:      location,
		Description:   CleanText(raw.Description),
		FirstSeen:     snapshotDate,
		LastSeen:      snapshotDate,
		SourceBatchID: batchID,
		SourceURL:     CleanText(raw.SourceURL),
	}

	if d := CleanText(raw.PostingDate); d != "" {
		if t, err := time.Parse(model.DateFormat, d); err == nil {
			rec.PostingDate = &t
		}
	}

	if sal, ok := ParseSalary(raw.SalaryText); ok {
		rec.CompMin = &sal.Min
		rec.CompMax = &sal.Max
		rec.Currency = sal.Currency
		rec.Disclosed = true
	}

	return rec, nil
}
