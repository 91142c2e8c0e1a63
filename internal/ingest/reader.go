package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// columnAliases maps accepted CSV header names to canonical field names.
// Weekly exports have drifted between scraper versions; ingestion accepts
// all spellings seen so far.
var columnAliases = map[string]string{
	"company":        "company",
	"company_name":   "company",
	"title":          "title",
	"job_title":      "title",
	"location":       "location",
	"description":    "description",
	"posting_date":   "posting_date",
	"date_posted":    "posting_date",
	"salary_text":    "salary_text",
	"salary":         "salary_text",
	"source_url":     "source_url",
	"job_url":        "source_url",
	"job_url_direct": "source_url",
}

// Scanner reads raw rows from a weekly CSV export one at a time. It is a
// pure function of its input: re-running over the same file yields the
// same rows in the same order. Restart by constructing a new Scanner.
type Scanner struct {
	r      *csv.Reader
	closer io.Closer
	cols   map[string]int // canonical field → column index
	row    RawScan
	line   int
	err    error
}

// RawScan is one scanned row plus its source position.
type RawScan struct {
	Company     string
	Title       string
	Location    string
	Description string
	PostingDate string
	SalaryText  string
	SourceURL   string
	Line        int
}

// Open creates a Scanner over a CSV file. The first row must be a header.
func Open(path string) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	s, err := NewScanner(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewScanner creates a Scanner over any CSV stream.
func NewScanner(r io.Reader) (*Scanner, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := columnAliases[h]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	if _, ok := cols["company"]; !ok {
		if _, ok := cols["title"]; !ok {
			return nil, eris.New("ingest: header has neither company nor title column")
		}
	}

	return &Scanner{r: cr, cols: cols, line: 1}, nil
}

// Next advances to the next row. It returns false at EOF or on a read
// error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	rec, err := s.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		s.err = eris.Wrapf(err, "ingest: read row %d", s.line+1)
		return false
	}
	s.line++
	s.row = RawScan{
		Company:     s.field(rec, "company"),
		Title:       s.field(rec, "title"),
		Location:    s.field(rec, "location"),
		Description: s.field(rec, "description"),
		PostingDate: s.field(rec, "posting_date"),
		SalaryText:  s.field(rec, "salary_text"),
		SourceURL:   s.field(rec, "source_url"),
		Line:        s.line,
	}
	return true
}

// Row returns the current row. Only valid after Next reports true.
func (s *Scanner) Row() RawScan { return s.row }

// Err returns the first error encountered while scanning.
func (s *Scanner) Err() error { return s.err }

// Close releases the underlying file, if any.
func (s *Scanner) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Scanner) field(rec []string, name string) string {
	i, ok := s.cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}
