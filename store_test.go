package chdata

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testStatement() *FinancialStatement {
	facts := make(map[string]decimal.NullDecimal)
	for _, concept := range FinancialConcepts() {
		facts[concept] = decimal.NullDecimal{}
	}
	facts["TurnoverRevenue"] = decimal.NullDecimal{Decimal: decimal.RequireFromString("1234567"), Valid: true}
	facts["GrossProfitLoss"] = decimal.NullDecimal{Decimal: decimal.RequireFromString("400000.50"), Valid: true}
	facts["Creditors"] = decimal.NullDecimal{Decimal: decimal.RequireFromString("-89000"), Valid: true}

	return &FinancialStatement{
		CompanyNumber: "02235387",
		PeriodEnd:     "2023-06-30",
		CompanyName:   "EXAMPLE TRADING LIMITED",
		AddressLine1:  "1 High Street",
		Locality:      "London",
		PostalCode:    "EC1A 1AA",
		Country:       "England",
		SICCode1:      "62012",
		ReportEndDate: "2023-03-31",
		Facts:         facts,
	}
}

var decimalCmp = cmp.Comparer(func(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
})

func TestUpsertStatementRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	st := testStatement()

	created, err := store.UpsertStatement(ctx, st)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := store.GetStatement(ctx, st.CompanyNumber, st.PeriodEnd)
	require.NoError(t, err)

	if diff := cmp.Diff(st, got, decimalCmp); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertStatementIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, err := store.UpsertStatement(ctx, testStatement())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.UpsertStatement(ctx, testStatement())
	require.NoError(t, err)
	assert.False(t, created, "second write of the same key updates in place")

	n, err := store.CountStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// Re-processing replaces all columns: a concept that stops extracting
// overwrites its old value with null rather than keeping it.
func TestUpsertStatementFullReplace(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testStatement()
	_, err := store.UpsertStatement(ctx, first)
	require.NoError(t, err)

	second := testStatement()
	second.Facts["TurnoverRevenue"] = decimal.NullDecimal{}
	second.Facts["NetAssetsLiabilities"] = decimal.NullDecimal{Decimal: decimal.RequireFromString("77"), Valid: true}
	second.CompanyName = "EXAMPLE TRADING LIMITED (RENAMED)"
	_, err = store.UpsertStatement(ctx, second)
	require.NoError(t, err)

	got, err := store.GetStatement(ctx, first.CompanyNumber, first.PeriodEnd)
	require.NoError(t, err)

	assert.False(t, got.Facts["TurnoverRevenue"].Valid, "stale value must not survive")
	require.True(t, got.Facts["NetAssetsLiabilities"].Valid)
	assert.Equal(t, "77", got.Facts["NetAssetsLiabilities"].Decimal.String())
	assert.Equal(t, "EXAMPLE TRADING LIMITED (RENAMED)", got.CompanyName)
}

func TestUpsertStatementDistinctPeriods(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testStatement()
	_, err := store.UpsertStatement(ctx, first)
	require.NoError(t, err)

	second := testStatement()
	second.PeriodEnd = "2024-06-30"
	created, err := store.UpsertStatement(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)

	n, err := store.CountStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpsertStatementConcurrentSameKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.UpsertStatement(ctx, testStatement())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}

	n, err := store.CountStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "concurrent same-key writes must collapse to one row")
}
