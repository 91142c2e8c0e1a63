package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSalary_Range(t *testing.T) {
	s, ok := ParseSalary("$150,000 - $200,000 a year")
	assert.True(t, ok)
	assert.Equal(t, 150000.0, s.Min)
	assert.Equal(t, 200000.0, s.Max)
	assert.Equal(t, "USD", s.Currency)
}

func TestParseSalary_RangeWithoutThousandsSeparators(t *testing.T) {
	s, ok := ParseSalary("$150000 - $200000 a year")
	assert.True(t, ok)
	assert.Equal(t, 150000.0, s.Min)
	assert.Equal(t, 200000.0, s.Max)
}

func TestParseSalary_SingleAmount(t *testing.T) {
	s, ok := ParseSalary("Up to $250K")
	assert.True(t, ok)
	assert.Equal(t, 250000.0, s.Min)
	assert.Equal(t, 250000.0, s.Max)
}

func TestParseSalary_KSuffixRange(t *testing.T) {
	s, ok := ParseSalary("$150K-$180K base")
	assert.True(t, ok)
	assert.Equal(t, 150000.0, s.Min)
	assert.Equal(t, 180000.0, s.Max)
}

func TestParseSalary_Hourly(t *testing.T) {
	s, ok := ParseSalary("$90 an hour")
	assert.True(t, ok)
	assert.Equal(t, 90.0*2080, s.Min)
	assert.Equal(t, 90.0*2080, s.Max)
}

func TestParseSalary_Monthly(t *testing.T) {
	s, ok := ParseSalary("$12,500 per month")
	assert.True(t, ok)
	assert.Equal(t, 150000.0, s.Min)
}

func TestParseSalary_SwapsReversedBounds(t *testing.T) {
	s, ok := ParseSalary("$200,000 - $150,000")
	assert.True(t, ok)
	assert.Equal(t, 150000.0, s.Min)
	assert.Equal(t, 200000.0, s.Max)
}

func TestParseSalary_Currency(t *testing.T) {
	s, ok := ParseSalary("£120,000 - £150,000 per year")
	assert.True(t, ok)
	assert.Equal(t, "GBP", s.Currency)

	s, ok = ParseSalary("€100,000")
	assert.True(t, ok)
	assert.Equal(t, "EUR", s.Currency)
}

func TestParseSalary_Unparseable(t *testing.T) {
	for _, text := range []string{"", "Competitive", "DOE", "commensurate with experience"} {
		_, ok := ParseSalary(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestParseSalary_RejectsNoiseNumbers(t *testing.T) {
	// Small bare numbers are counts or tenure, not executive pay.
	for _, text := range []string{"3 openings", "5+ years experience", "$500 signing bonus"} {
		_, ok := ParseSalary(text)
		assert.False(t, ok, "text %q", text)
	}
}
