package export

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/cro-report/jobs-cli/internal/model"
)

// WriteAggregatesXLSX writes published aggregate buckets plus a summary
// sheet to a workbook. Suppressed buckets are excluded, same as the CSV
// output.
func WriteAggregatesXLSX(path string, buckets []model.AggregateBucket, stats model.MarketStats) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Compensation")
	if err != nil {
		return eris.Wrap(err, "export: add compensation sheet")
	}
	header := sheet.AddRow()
	for _, col := range aggregateColumns {
		header.AddCell().SetString(col)
	}
	for _, b := range buckets {
		if b.Suppressed {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(b.SnapshotDate.Format(model.DateFormat))
		row.AddCell().SetString(b.Key.Seniority)
		row.AddCell().SetString(b.Key.Stage)
		row.AddCell().SetString(b.Key.Metro)
		row.AddCell().SetString(boolStr(b.Key.Tech))
		row.AddCell().SetInt(b.SampleCount)
		row.AddCell().SetFloat(b.AvgMin)
		row.AddCell().SetFloat(b.AvgMax)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range [][2]string{
		{"Snapshot", stats.Date.Format(model.DateFormat)},
		{"Total Roles", fmt.Sprintf("%d", stats.TotalRoles)},
		{"WoW Change %", fmt.Sprintf("%.1f", stats.WoWChangePct)},
		{"Remote %", fmt.Sprintf("%.1f", stats.RemotePct)},
		{"Disclosure Rate %", fmt.Sprintf("%.1f", stats.DisclosureRate)},
		{"Unique Companies", fmt.Sprintf("%d", stats.UniqueCompanies)},
		{"Avg Max Salary", fmt.Sprintf("%.0f", stats.AvgMaxSalary)},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	return eris.Wrap(f.Save(path), "export: save workbook")
}
