package s0_data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
)

// testCode is reserved for integration runs and removed afterwards
const testCode = "T9999"

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)

	repo := NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))

	cleanup := func() {
		for _, stmt := range []string{
			`DELETE FROM data.daily_prices WHERE code = $1`,
			`DELETE FROM data.statements WHERE local_code = $1`,
			`DELETE FROM signals.fundamental WHERE local_code = $1`,
			`DELETE FROM signals.technical_indicators WHERE code = $1`,
		} {
			_, _ = pool.Exec(context.Background(), stmt, testCode)
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		repo.Close()
	})
	return repo
}

func date(s string) time.Time {
	d, _ := contracts.ParseDate(s)
	return d
}

func TestRepository_Prices(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	bars := []contracts.PriceBar{
		{Code: testCode, Date: date("2024-01-05"), AdjClose: 100, AdjHigh: 101, AdjLow: 99},
		{Code: testCode, Date: date("2024-01-04"), AdjClose: 98},
	}
	require.NoError(t, repo.SavePrices(ctx, bars))

	// replacing a row keeps one row per (code, date)
	bars[0].AdjClose = 105
	require.NoError(t, repo.SavePrices(ctx, bars[:1]))

	got, err := repo.PriceHistory(ctx, testCode, date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, date("2024-01-04"), got[0].Date)
	assert.Equal(t, 105.0, got[1].AdjClose)

	bar, err := repo.PriceAt(ctx, testCode, date("2024-01-06"))
	require.NoError(t, err)
	assert.Nil(t, bar)

	cal, err := repo.TradingCalendar(ctx, date("2024-01-04"), date("2024-01-05"))
	require.NoError(t, err)
	assert.Contains(t, cal, date("2024-01-05"))
}

func TestRepository_FundamentalSignalIsWrittenOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	at := time.Date(2024, 2, 9, 15, 0, 0, 0, time.UTC)
	sig := contracts.FundamentalSignal{LocalCode: testCode, DisclosedAt: at, EPSYoYFY: contracts.Float(0.4), CreatedAt: time.Now()}

	inserted, err := repo.UpsertFundamentalSignal(ctx, sig)
	require.NoError(t, err)
	assert.True(t, inserted)

	sig.EPSYoYFY = contracts.Float(9)
	inserted, err = repo.UpsertFundamentalSignal(ctx, sig)
	require.NoError(t, err)
	assert.False(t, inserted)

	rows, err := repo.QuerySignals(ctx, contracts.SignalQuery{
		Kind: contracts.KindFundamental, Code: testCode, From: date("2024-02-09"), To: date("2024-02-09"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.4, *rows[0].Fundamental.EPSYoYFY)
	assert.Nil(t, rows[0].Fundamental.CFQuality)
}

func TestRepository_TechnicalSignals(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertTechnicalSignal(ctx, contracts.TechnicalSignal{
		Code: testCode, SignalDate: date("2024-03-01"), SignalCount: 2,
	}))
	require.NoError(t, repo.UpsertTechnicalSignal(ctx, contracts.TechnicalSignal{
		Code: testCode, SignalDate: date("2024-03-01"), SignalCount: 5, First: true,
	}))

	rows, err := repo.QuerySignals(ctx, contracts.SignalQuery{
		Kind: contracts.KindTechnical, Code: testCode, From: date("2024-03-01"), To: date("2024-03-01"),
		MinCount: 3, FirstOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Technical.SignalCount)
}

func TestRepository_Statements(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	records := []contracts.StatementRecord{
		{DisclosureNumber: "T-2", LocalCode: testCode, DisclosedDate: date("2024-05-10"), DisclosedTime: "15:00:00",
			TypeOfCurrentPeriod: "FY", EarningsPerShare: contracts.Float(120)},
		{DisclosureNumber: "T-1", LocalCode: testCode, DisclosedDate: date("2024-02-09"), TypeOfCurrentPeriod: "3Q"},
	}
	require.NoError(t, repo.SaveStatements(ctx, records))
	t.Cleanup(func() {
		_, _ = repo.Pool().Exec(context.Background(), `DELETE FROM data.statements WHERE disclosure_number LIKE 'T-%'`)
	})

	got, err := repo.StatementHistory(ctx, testCode)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "T-1", got[0].DisclosureNumber)
	assert.Equal(t, 120.0, *got[1].EarningsPerShare)
}
