package chdata

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// ErrCompanyNotFound marks a document whose source company could not be
// identified. Assembly aborts for that document rather than producing an
// orphan record; the corpus continues.
var ErrCompanyNotFound = errors.New("company not found")

// ReportEndDateConcept is the business-role concept carrying the period end
// date covered by the report.
const ReportEndDateConcept = "EndDateForPeriodCoveredByReport"

// The fixed concept list, grouped by statement. Persisted column names equal
// these concept names exactly to preserve traceability to source tag names.
var (
	IncomeStatementConcepts = []string{
		"TurnoverRevenue", "CostSales", "GrossProfitLoss", "ProfitLoss",
		"AdministrativeExpenses", "OtherOperatingIncomeFormat1", "OperatingProfit",
		"OperatingProfitLoss", "OtherInterestRecievablesSimilarIncomeFinanceIncome",
		"ProfitLossOnOrdinaryActivitiesBeforeTax", "TaxTaxCreditOnProfitOrLossOnOrdinaryActivities",
		"NetIncome", "GrossProfit",
	}

	BalanceSheetConcepts = []string{
		"IntangibleAssets", "PropertyPlantEquipment", "InvestmentsFixedAssets",
		"FixedAssets", "TotalInventories", "Debtors", "CashBankOnHand",
		"CurrentAssets", "TotalAssetsLessCurrentLiabilities", "Creditors",
		"TaxationIncludingDeferredTaxationBalanceSheetSubtotal", "NetCurrentAssetsLiabilities",
		"NetAssetsLiabilities",
	}

	CashFlowConcepts = []string{
		"NetCashFlowsFromUsedInOperatingActivities", "NetCashFlowsFromUsedInInvestingActivities",
		"CashCashEquivalents", "IncreaseDecreaseInCashCashEquivalents",
	}

	EmployeeConcepts = []string{
		"AverageNumberEmployeesDuringPeriod",
	}
)

// FinancialConcepts returns the full ordered financial-role concept list the
// assembler extracts and the store persists.
func FinancialConcepts() []string {
	concepts := make([]string, 0,
		len(IncomeStatementConcepts)+len(BalanceSheetConcepts)+len(CashFlowConcepts)+len(EmployeeConcepts))
	concepts = append(concepts, IncomeStatementConcepts...)
	concepts = append(concepts, BalanceSheetConcepts...)
	concepts = append(concepts, CashFlowConcepts...)
	concepts = append(concepts, EmployeeConcepts...)
	return concepts
}

// CompanySnapshot holds the company master data joined into a statement at
// extraction time. It is supplied by the caller (registry lookup); the
// assembler never re-derives or mutates company identity.
type CompanySnapshot struct {
	CompanyNumber string   `json:"company_number"`
	CompanyName   string   `json:"company_name"`
	AddressLine1  string   `json:"address_line_1"`
	AddressLine2  string   `json:"address_line_2"`
	Locality      string   `json:"locality"`
	PostalCode    string   `json:"postal_code"`
	Country       string   `json:"country"`
	SICCodes      []string `json:"sic_codes"`
}

// FinancialStatement is the assembled, company-joined record for one
// (company, filing period). Facts is keyed by concept name; an invalid
// NullDecimal persists as NULL.
type FinancialStatement struct {
	CompanyNumber string `json:"company_number"`
	PeriodEnd     string `json:"period_end"` // natural key component, YYYY-MM-DD

	CompanyName  string `json:"company_name"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	Locality     string `json:"locality"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	SICCode1     string `json:"sic_code_1"`
	SICCode2     string `json:"sic_code_2"`
	SICCode3     string `json:"sic_code_3"`
	SICCode4     string `json:"sic_code_4"`

	// ReportEndDate is the period end extracted from the document itself,
	// "" when the filing does not carry one.
	ReportEndDate string `json:"report_end_date"`

	Facts map[string]decimal.NullDecimal `json:"facts"`
}

// Assembler drives the fact extractor over the full concept list and joins
// the results with company master data into one FinancialStatement.
type Assembler struct {
	logger *slog.Logger
}

func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger}
}

// Assemble produces exactly one record for the document, even when every
// concept fails to extract (an all-null record is still a recorded attempt).
// The only abort is an unidentifiable company.
func (a *Assembler) Assemble(doc *FilingDocument, parsed *ParsedDocument, snapshot *CompanySnapshot) (*FinancialStatement, error) {
	if snapshot == nil || snapshot.CompanyNumber == "" {
		return nil, fmt.Errorf("assemble %s: %w", doc.Name, ErrCompanyNotFound)
	}

	binding := ResolveTaxonomy(parsed.Namespaces)
	if binding.Unbound() {
		a.logger.Warn("no recognized taxonomy, table fallback only",
			"document", doc.Name, "company", snapshot.CompanyNumber)
	}

	extractor := NewFactExtractor(parsed, binding, a.logger)

	facts := make(map[string]decimal.NullDecimal)
	for _, concept := range FinancialConcepts() {
		facts[concept] = extractor.ExtractAmount(concept)
	}

	reportEnd := parseReportDate(extractor.ExtractText(ReportEndDateConcept))

	periodEnd := doc.FilingDate
	if periodEnd == "" {
		periodEnd = reportEnd
	}
	if periodEnd == "" {
		return nil, fmt.Errorf("assemble %s: no filing or report period date", doc.Name)
	}

	st := &FinancialStatement{
		CompanyNumber: snapshot.CompanyNumber,
		PeriodEnd:     periodEnd,
		CompanyName:   snapshot.CompanyName,
		AddressLine1:  snapshot.AddressLine1,
		AddressLine2:  snapshot.AddressLine2,
		Locality:      snapshot.Locality,
		PostalCode:    snapshot.PostalCode,
		Country:       snapshot.Country,
		ReportEndDate: reportEnd,
		Facts:         facts,
	}

	sic := snapshot.SICCodes
	if len(sic) > 0 {
		st.SICCode1 = sic[0]
	}
	if len(sic) > 1 {
		st.SICCode2 = sic[1]
	}
	if len(sic) > 2 {
		st.SICCode3 = sic[2]
	}
	if len(sic) > 3 {
		st.SICCode4 = sic[3]
	}

	return st, nil
}

// reportDateLayouts are the formats filings present period end dates in.
var reportDateLayouts = []string{
	"2006-01-02",
	"2.1.06",
	"2/1/06",
	"2-1-06",
	"2 January 2006",
}

// parseReportDate converts a filing's date text into YYYY-MM-DD, "" when the
// text matches no known format.
func parseReportDate(text string) string {
	if text == "" {
		return ""
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
