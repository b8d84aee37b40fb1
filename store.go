package chdata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store is the persistence sink for assembled statements.
type Store interface {
	// UpsertStatement writes the statement keyed by (company number, period
	// end), replacing every extracted-fact and snapshot column when the row
	// already exists. Reports whether the row was newly created.
	UpsertStatement(ctx context.Context, st *FinancialStatement) (created bool, err error)
}

// snapshotColumns are the fixed (non-concept) columns of the statements
// table, in insert order. The two leading columns form the natural key.
var snapshotColumns = []string{
	"company_number", "period_end",
	"company_name", "address_line_1", "address_line_2", "locality",
	"postal_code", "country",
	"sic_code_1", "sic_code_2", "sic_code_3", "sic_code_4",
	"report_end_date",
}

// SQLiteStore persists statements in a SQLite database. A single write
// connection serializes key-scoped upserts, so concurrent calls for the same
// natural key can never race into duplicate rows.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenStore opens (creating if needed) the statements database at path.
// Pass ":memory:" for an ephemeral store.
func OpenStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(statementsSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create statements table: %w", err)
	}

	logger.Info("statements database ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// statementsSchema builds the DDL for the flattened statements table: one
// column per concept, named exactly after the concept (case-sensitive), plus
// the company snapshot and period columns.
func statementsSchema() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS financial_statements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_number TEXT NOT NULL,
	period_end TEXT NOT NULL,
	company_name TEXT,
	address_line_1 TEXT,
	address_line_2 TEXT,
	locality TEXT,
	postal_code TEXT,
	country TEXT,
	sic_code_1 TEXT,
	sic_code_2 TEXT,
	sic_code_3 TEXT,
	sic_code_4 TEXT,
	report_end_date TEXT,
`)
	for _, concept := range FinancialConcepts() {
		// Decimal values are stored as exact text, never as floats.
		fmt.Fprintf(&b, "\t%q TEXT,\n", concept)
	}
	b.WriteString(`	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(company_number, period_end)
);`)
	return b.String()
}

// UpsertStatement implements Store with a single key-scoped transaction: a
// database-level upsert that replaces every column, so a concept that newly
// resolves to null overwrites a previously non-null value.
func (s *SQLiteStore) UpsertStatement(ctx context.Context, st *FinancialStatement) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upsert %s/%s: begin: %w", st.CompanyNumber, st.PeriodEnd, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM financial_statements WHERE company_number = ? AND period_end = ?)`,
		st.CompanyNumber, st.PeriodEnd).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("upsert %s/%s: lookup: %w", st.CompanyNumber, st.PeriodEnd, err)
	}

	query, args := buildUpsert(st)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("upsert %s/%s (concepts attempted: %d): %w",
			st.CompanyNumber, st.PeriodEnd, len(st.Facts), err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsert %s/%s: commit: %w", st.CompanyNumber, st.PeriodEnd, err)
	}

	return !exists, nil
}

// buildUpsert renders the INSERT ... ON CONFLICT DO UPDATE statement that
// replaces all columns for the natural key.
func buildUpsert(st *FinancialStatement) (string, []any) {
	columns := make([]string, 0, len(snapshotColumns)+len(st.Facts))
	args := make([]any, 0, cap(columns))

	columns = append(columns, snapshotColumns...)
	args = append(args,
		st.CompanyNumber, st.PeriodEnd,
		st.CompanyName, st.AddressLine1, st.AddressLine2, st.Locality,
		st.PostalCode, st.Country,
		st.SICCode1, st.SICCode2, st.SICCode3, st.SICCode4,
		nullString(st.ReportEndDate),
	)

	for _, concept := range FinancialConcepts() {
		columns = append(columns, concept)
		args = append(args, decimalArg(st.Facts[concept]))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO financial_statements (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", col)
	}
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	b.WriteString(") ON CONFLICT(company_number, period_end) DO UPDATE SET ")
	first := true
	for _, col := range columns[2:] { // key columns stay put
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%q = excluded.%q", col, col)
	}
	b.WriteString(", updated_at = CURRENT_TIMESTAMP")

	return b.String(), args
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetStatement reads back one persisted statement by its natural key, or
// sql.ErrNoRows when absent.
func (s *SQLiteStore) GetStatement(ctx context.Context, companyNumber, periodEnd string) (*FinancialStatement, error) {
	concepts := FinancialConcepts()

	var b strings.Builder
	b.WriteString("SELECT company_name, address_line_1, address_line_2, locality, postal_code, country, ")
	b.WriteString("sic_code_1, sic_code_2, sic_code_3, sic_code_4, report_end_date")
	for _, concept := range concepts {
		fmt.Fprintf(&b, ", %q", concept)
	}
	b.WriteString(" FROM financial_statements WHERE company_number = ? AND period_end = ?")

	st := &FinancialStatement{
		CompanyNumber: companyNumber,
		PeriodEnd:     periodEnd,
		Facts:         make(map[string]decimal.NullDecimal, len(concepts)),
	}

	fixed := make([]sql.NullString, 11+len(concepts))
	fixedPtrs := make([]any, 0, len(fixed))
	for i := range fixed {
		fixedPtrs = append(fixedPtrs, &fixed[i])
	}

	err := s.db.QueryRowContext(ctx, b.String(), companyNumber, periodEnd).Scan(fixedPtrs...)
	if err != nil {
		return nil, err
	}

	st.CompanyName = fixed[0].String
	st.AddressLine1 = fixed[1].String
	st.AddressLine2 = fixed[2].String
	st.Locality = fixed[3].String
	st.PostalCode = fixed[4].String
	st.Country = fixed[5].String
	st.SICCode1 = fixed[6].String
	st.SICCode2 = fixed[7].String
	st.SICCode3 = fixed[8].String
	st.SICCode4 = fixed[9].String
	st.ReportEndDate = fixed[10].String

	for i, concept := range concepts {
		cell := fixed[11+i]
		if !cell.Valid {
			st.Facts[concept] = decimal.NullDecimal{}
			continue
		}
		d, err := decimal.NewFromString(cell.String)
		if err != nil {
			return nil, fmt.Errorf("stored value for %s is not a decimal: %w", concept, err)
		}
		st.Facts[concept] = decimal.NullDecimal{Decimal: d, Valid: true}
	}

	return st, nil
}

// CountStatements returns the number of persisted rows, for run summaries
// and tests.
func (s *SQLiteStore) CountStatements(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM financial_statements`).Scan(&n)
	return n, err
}
