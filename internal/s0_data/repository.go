package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/kabu/internal/contracts"
)

// batchSize bounds the rows written per transaction
const batchSize = 500

// Repository is the PostgreSQL contracts.Store
// ⭐ SSOT: PostgreSQL reads and writes for prices, statements, listings and signals live in this package
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ contracts.Store = (*Repository)(nil)

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// Close releases the pool
func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

// summaryTables maps each reported table to its date column
var summaryTables = []struct {
	name   string
	table  string
	column string
}{
	{"prices", "data.daily_prices", "trade_date"},
	{"statements", "data.statements", "disclosed_at"},
	{"listed_info", "data.listed_info", "info_date"},
	{"fundamental_signals", "signals.fundamental", "disclosed_at"},
	{"technical_indicators", "signals.technical_indicators", "signal_date"},
}

// Summary reports row count and date span per table
func (r *Repository) Summary(ctx context.Context) ([]contracts.TableSummary, error) {
	out := make([]contracts.TableSummary, 0, len(summaryTables))
	for _, t := range summaryTables {
		query := fmt.Sprintf(`SELECT COUNT(*), MIN(%[1]s)::timestamp, MAX(%[1]s)::timestamp FROM %[2]s`, t.column, t.table)

		var (
			count  int64
			lo, hi *time.Time
		)
		if err := r.db.QueryRow(ctx, query).Scan(&count, &lo, &hi); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", t.table, err)
		}

		s := contracts.TableSummary{Table: t.name, Rows: count}
		if lo != nil {
			s.Widen(*lo)
		}
		if hi != nil {
			s.Widen(*hi)
		}
		out = append(out, s)
	}
	return out, nil
}
