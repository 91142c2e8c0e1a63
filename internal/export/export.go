package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cro-report/jobs-cli/internal/model"
)

// jobColumns defines the ordered job CSV output columns.
var jobColumns = []string{
	"ID",
	"Company",
	"Title",
	"Location",
	"Metro",
	"Seniority",
	"Company Stage",
	"Industry",
	"Work Arrangement",
	"Tech",
	"Comp Min",
	"Comp Max",
	"Currency",
	"Disclosed",
	"Posting Date",
	"First Seen",
	"Last Seen",
	"Lifecycle",
	"Substitutes",
	"Methodologies",
	"Source URL",
}

// WriteJobsCSV writes the master store with derived lifecycle states and,
// for Stale records, suggested substitute ids.
func WriteJobsCSV(path string, records []*model.JobRecord, states map[string]model.LifecycleState, substitutes map[string][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create jobs csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(jobColumns); err != nil {
		return eris.Wrap(err, "export: write jobs header")
	}
	for _, rec := range records {
		if err := w.Write(jobRow(rec, states[rec.ID], substitutes[rec.ID])); err != nil {
			return eris.Wrapf(err, "export: write job %s", rec.ID)
		}
	}
	return nil
}

func jobRow(rec *model.JobRecord, state model.LifecycleState, subs []string) []string {
	return []string{
		rec.ID,
		rec.Company,
		rec.Title,
		rec.Location,
		rec.Metro,
		rec.Seniority,
		rec.CompanyStage,
		rec.Industry,
		rec.WorkArrangement,
		boolStr(rec.Tech),
		floatPtrStr(rec.CompMin),
		floatPtrStr(rec.CompMax),
		rec.Currency,
		boolStr(rec.Disclosed),
		datePtrStr(rec.PostingDate),
		rec.FirstSeen.Format(model.DateFormat),
		rec.LastSeen.Format(model.DateFormat),
		string(state),
		strings.Join(subs, " "),
		strings.Join(rec.Methodologies, " "),
		rec.SourceURL,
	}
}

// WriteChangelogCSV writes the append-only changelog, newest first.
func WriteChangelogCSV(path string, entries []model.ChangeEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create changelog csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"ID", "Job ID", "Snapshot", "Event", "Details", "Created At"}); err != nil {
		return eris.Wrap(err, "export: write changelog header")
	}
	for _, e := range entries {
		var details string
		if e.Details != nil {
			b, err := json.Marshal(e.Details)
			if err != nil {
				return eris.Wrap(err, "export: marshal changelog details")
			}
			details = string(b)
		}
		row := []string{
			e.ID,
			e.JobID,
			e.SnapshotDate.Format(model.DateFormat),
			e.Event,
			details,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "export: write changelog %s", e.ID)
		}
	}
	return nil
}

// aggregateColumns defines the ordered aggregate CSV output columns.
var aggregateColumns = []string{
	"Snapshot",
	"Seniority",
	"Company Stage",
	"Metro",
	"Tech",
	"Sample Count",
	"Avg Min",
	"Avg Max",
}

// WriteAggregatesCSV writes published buckets only: suppressed buckets
// stay in the store but never leave it.
func WriteAggregatesCSV(path string, buckets []model.AggregateBucket) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create aggregates csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(aggregateColumns); err != nil {
		return eris.Wrap(err, "export: write aggregates header")
	}
	for _, b := range buckets {
		if b.Suppressed {
			continue
		}
		if err := w.Write(aggregateRow(b)); err != nil {
			return eris.Wrap(err, "export: write aggregate row")
		}
	}
	return nil
}

func aggregateRow(b model.AggregateBucket) []string {
	return []string{
		b.SnapshotDate.Format(model.DateFormat),
		b.Key.Seniority,
		b.Key.Stage,
		b.Key.Metro,
		boolStr(b.Key.Tech),
		fmt.Sprintf("%d", b.SampleCount),
		fmt.Sprintf("%.0f", b.AvgMin),
		fmt.Sprintf("%.0f", b.AvgMax),
	}
}

// WriteMarketStatsJSON writes the per-snapshot headline summaries for the
// rendering collaborator, oldest first, the current snapshot last.
func WriteMarketStatsJSON(path string, stats []model.MarketStats) error {
	b, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal market stats")
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return eris.Wrap(err, "export: write market stats")
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func floatPtrStr(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *v)
}

func datePtrStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(model.DateFormat)
}
