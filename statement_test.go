package chdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *CompanySnapshot {
	return &CompanySnapshot{
		CompanyNumber: "02235387",
		CompanyName:   "EXAMPLE TRADING LIMITED",
		AddressLine1:  "1 High Street",
		Locality:      "London",
		PostalCode:    "EC1A 1AA",
		Country:       "England",
		SICCodes:      []string{"62012", "62020", "62090", "63110", "70229"},
	}
}

func TestAssemble(t *testing.T) {
	parsed, _ := boundDoc([]InlineFact{
		{Name: "b:EndDateForPeriodCoveredByReport", Text: "2023-03-31", Hidden: true, NonNumeric: true},
		{Name: "c:TurnoverRevenue", Text: "1,234,567"},
		{Name: "c:GrossProfitLoss", Text: "400,000"},
		{Name: "c:Creditors", Text: "89,000", Sign: "-"},
	}, nil)
	doc := &FilingDocument{
		Name:          "0001_ABC_02235387_20230630.xhtml",
		CompanyNumber: "02235387",
		FilingDate:    "2023-06-30",
	}

	st, err := NewAssembler(nil).Assemble(doc, parsed, testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "02235387", st.CompanyNumber)
	assert.Equal(t, "2023-06-30", st.PeriodEnd, "filing date wins as the period key")
	assert.Equal(t, "2023-03-31", st.ReportEndDate)
	assert.Equal(t, "EXAMPLE TRADING LIMITED", st.CompanyName)

	// SIC codes beyond the fourth are dropped.
	assert.Equal(t, "62012", st.SICCode1)
	assert.Equal(t, "62020", st.SICCode2)
	assert.Equal(t, "62090", st.SICCode3)
	assert.Equal(t, "63110", st.SICCode4)

	require.True(t, st.Facts["TurnoverRevenue"].Valid)
	assert.Equal(t, "1234567", st.Facts["TurnoverRevenue"].Decimal.String())
	require.True(t, st.Facts["Creditors"].Valid)
	assert.Equal(t, "-89000", st.Facts["Creditors"].Decimal.String())

	// Every concept gets an entry, extracted or not.
	assert.Len(t, st.Facts, len(FinancialConcepts()))
	assert.False(t, st.Facts["IntangibleAssets"].Valid)
}

func TestAssembleAllNullStillRecords(t *testing.T) {
	parsed := &ParsedDocument{Namespaces: map[string]string{}}
	doc := &FilingDocument{Name: "empty.html", CompanyNumber: "02235387", FilingDate: "2023-06-30"}

	st, err := NewAssembler(nil).Assemble(doc, parsed, testSnapshot())
	require.NoError(t, err)

	for concept, v := range st.Facts {
		assert.False(t, v.Valid, "concept %s should be null", concept)
	}
	assert.Empty(t, st.ReportEndDate)
}

func TestAssembleMissingCompany(t *testing.T) {
	parsed := &ParsedDocument{Namespaces: map[string]string{}}
	doc := &FilingDocument{Name: "orphan.html", FilingDate: "2023-06-30"}

	_, err := NewAssembler(nil).Assemble(doc, parsed, nil)
	assert.ErrorIs(t, err, ErrCompanyNotFound)

	_, err = NewAssembler(nil).Assemble(doc, parsed, &CompanySnapshot{})
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestAssemblePeriodFallsBackToReportDate(t *testing.T) {
	parsed, _ := boundDoc([]InlineFact{
		{Name: "b:EndDateForPeriodCoveredByReport", Text: "31 March 2023", Hidden: true, NonNumeric: true},
	}, nil)
	doc := &FilingDocument{Name: "download", CompanyNumber: "02235387"}

	st, err := NewAssembler(nil).Assemble(doc, parsed, testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "2023-03-31", st.PeriodEnd)
}

func TestAssembleNoPeriodAtAll(t *testing.T) {
	parsed := &ParsedDocument{Namespaces: map[string]string{}}
	doc := &FilingDocument{Name: "undated.html", CompanyNumber: "02235387"}

	_, err := NewAssembler(nil).Assemble(doc, parsed, testSnapshot())
	assert.Error(t, err)
}

func TestParseReportDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2023-03-31", "2023-03-31"},
		{"31.3.23", "2023-03-31"},
		{"31/3/23", "2023-03-31"},
		{"31-3-23", "2023-03-31"},
		{"31 March 2023", "2023-03-31"},
		{"sometime in spring", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseReportDate(tt.in), "input %q", tt.in)
	}
}
