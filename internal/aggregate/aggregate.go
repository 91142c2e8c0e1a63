// Package aggregate computes grouped compensation statistics and
// week-over-week trend deltas from the current-state table. Everything
// here is a pure function over its inputs.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/cro-report/jobs-cli/internal/model"
)

// Compute groups disclosed Live and Stale records into buckets by
// seniority tier, company stage, metro and tech/non-tech and computes
// per-bucket sample counts and mean compensation bounds. Buckets below
// minSample are flagged suppressed: retained internally for trend
// continuity, excluded from published output.
func Compute(records []*model.JobRecord, states map[string]model.LifecycleState, snapshotDate time.Time, minSample int) []model.AggregateBucket {
	type acc struct {
		n      int
		sumMin float64
		sumMax float64
	}
	byKey := make(map[model.BucketKey]*acc)

	for _, r := range records {
		if !r.Disclosed || r.CompMin == nil || r.CompMax == nil {
			continue
		}
		switch states[r.ID] {
		case model.StateLive, model.StateStale:
		default:
			continue
		}
		key := model.BucketKey{Seniority: r.Seniority, Stage: r.CompanyStage, Metro: r.Metro, Tech: r.Tech}
		a := byKey[key]
		if a == nil {
			a = &acc{}
			byKey[key] = a
		}
		a.n++
		a.sumMin += *r.CompMin
		a.sumMax += *r.CompMax
	}

	buckets := make([]model.AggregateBucket, 0, len(byKey))
	for key, a := range byKey {
		buckets = append(buckets, model.AggregateBucket{
			SnapshotDate: snapshotDate,
			Key:          key,
			SampleCount:  a.n,
			AvgMin:       a.sumMin / float64(a.n),
			AvgMax:       a.sumMax / float64(a.n),
			Suppressed:   a.n < minSample,
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i].Key, buckets[j].Key
		if a.Seniority != b.Seniority {
			return a.Seniority < b.Seniority
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Metro != b.Metro {
			return a.Metro < b.Metro
		}
		return !a.Tech && b.Tech
	})
	return buckets
}

// Headline is the single trend metric for one snapshot: the mean of
// avg_max across the topN buckets by sample count. Returns false when the
// snapshot has no buckets.
func Headline(buckets []model.AggregateBucket, topN int) (float64, bool) {
	if len(buckets) == 0 || topN <= 0 {
		return 0, false
	}
	sorted := make([]model.AggregateBucket, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SampleCount != sorted[j].SampleCount {
			return sorted[i].SampleCount > sorted[j].SampleCount
		}
		return sorted[i].AvgMax > sorted[j].AvgMax
	})
	if topN > len(sorted) {
		topN = len(sorted)
	}
	sum := 0.0
	for _, b := range sorted[:topN] {
		sum += b.AvgMax
	}
	return sum / float64(topN), true
}

// TrendPoint compares one prior snapshot's headline metric against the
// current one.
type TrendPoint struct {
	Date     time.Time `json:"date"`
	Headline float64   `json:"headline"`
	DeltaPct float64   `json:"delta_pct"`
}

// Trend computes the week-over-week percentage delta of the current
// headline against each retained prior snapshot.
func Trend(current float64, prior map[time.Time][]model.AggregateBucket, topN int) []TrendPoint {
	points := make([]TrendPoint, 0, len(prior))
	for date, buckets := range prior {
		h, ok := Headline(buckets, topN)
		if !ok || h == 0 {
			continue
		}
		points = append(points, TrendPoint{
			Date:     date,
			Headline: h,
			DeltaPct: round1((current - h) / h * 100),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// Stats computes the per-snapshot market headline summary over the
// records Live in the current snapshot. priorLive is the Live count of
// the previous snapshot, zero when there is none.
func Stats(records []*model.JobRecord, states map[string]model.LifecycleState, date time.Time, priorLive int) model.MarketStats {
	stats := model.MarketStats{Date: date}
	companies := make(map[string]bool)
	disclosed := 0
	remote := 0
	sumMax := 0.0

	for _, r := range records {
		if states[r.ID] != model.StateLive {
			continue
		}
		stats.TotalRoles++
		companies[r.Company] = true
		if r.Disclosed && r.CompMax != nil {
			disclosed++
			sumMax += *r.CompMax
		}
		if r.WorkArrangement == "Remote" {
			remote++
		}
	}

	stats.UniqueCompanies = len(companies)
	if stats.TotalRoles > 0 {
		stats.RemotePct = round1(float64(remote) / float64(stats.TotalRoles) * 100)
		stats.DisclosureRate = round1(float64(disclosed) / float64(stats.TotalRoles) * 100)
	}
	if disclosed > 0 {
		stats.AvgMaxSalary = math.Round(sumMax / float64(disclosed))
	}
	if priorLive > 0 {
		stats.WoWChangePct = round1(float64(stats.TotalRoles-priorLive) / float64(priorLive) * 100)
	}
	return stats
}

// TopRoles returns the n Live disclosed records with the highest
// compensation_max, ties broken by id for stable output.
func TopRoles(records []*model.JobRecord, states map[string]model.LifecycleState, n int) []*model.JobRecord {
	var eligible []*model.JobRecord
	for _, r := range records {
		if states[r.ID] == model.StateLive && r.Disclosed && r.CompMax != nil {
			eligible = append(eligible, r)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if *eligible[i].CompMax != *eligible[j].CompMax {
			return *eligible[i].CompMax > *eligible[j].CompMax
		}
		return eligible[i].ID < eligible[j].ID
	})
	if n > len(eligible) {
		n = len(eligible)
	}
	return eligible[:n]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
