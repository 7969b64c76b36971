package s0_data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/kabu/internal/contracts"
)

const priceColumns = `code, trade_date, open, high, low, close, volume, turnover_value,
	adj_factor, adj_open, adj_high, adj_low, adj_close, adj_volume`

func scanPrice(row pgx.Row) (contracts.PriceBar, error) {
	var b contracts.PriceBar
	err := row.Scan(
		&b.Code, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TurnoverValue,
		&b.AdjFactor, &b.AdjOpen, &b.AdjHigh, &b.AdjLow, &b.AdjClose, &b.AdjVolume,
	)
	b.Date = contracts.TruncateDay(b.Date)
	return b, err
}

// SavePrices upserts daily quotes in batches of 500 rows per transaction
func (r *Repository) SavePrices(ctx context.Context, bars []contracts.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (` + priceColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (code, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			turnover_value = EXCLUDED.turnover_value,
			adj_factor = EXCLUDED.adj_factor,
			adj_open = EXCLUDED.adj_open,
			adj_high = EXCLUDED.adj_high,
			adj_low = EXCLUDED.adj_low,
			adj_close = EXCLUDED.adj_close,
			adj_volume = EXCLUDED.adj_volume,
			updated_at = NOW()
	`

	for i := 0; i < len(bars); i += batchSize {
		end := i + batchSize
		if end > len(bars) {
			end = len(bars)
		}

		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction (batch %d): %w", i/batchSize, err)
		}
		for _, b := range bars[i:end] {
			_, err := tx.Exec(ctx, query,
				b.Code, contracts.TruncateDay(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume, b.TurnoverValue,
				b.AdjFactor, b.AdjOpen, b.AdjHigh, b.AdjLow, b.AdjClose, b.AdjVolume,
			)
			if err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("insert price for %s: %w", b.Code, err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction (batch %d): %w", i/batchSize, err)
		}
	}
	return nil
}

// PriceHistory retrieves bars for a code within [from, to], ascending
func (r *Repository) PriceHistory(ctx context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM data.daily_prices
		WHERE code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.db.Query(ctx, query, code, contracts.TruncateDay(from), contracts.TruncateDay(to))
	if err != nil {
		return nil, fmt.Errorf("query prices for %s: %w", code, err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		b, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// PriceAt retrieves the bar for a code on date; nil when absent
func (r *Repository) PriceAt(ctx context.Context, code string, date time.Time) (*contracts.PriceBar, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM data.daily_prices
		WHERE code = $1 AND trade_date = $2
	`

	b, err := scanPrice(r.db.QueryRow(ctx, query, code, contracts.TruncateDay(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query price for %s: %w", code, err)
	}
	return &b, nil
}

// TradingCalendar returns the distinct trade dates in [from, to]
func (r *Repository) TradingCalendar(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT trade_date
		FROM data.daily_prices
		WHERE trade_date BETWEEN $1 AND $2
		ORDER BY trade_date ASC
	`

	rows, err := r.db.Query(ctx, query, contracts.TruncateDay(from), contracts.TruncateDay(to))
	if err != nil {
		return nil, fmt.Errorf("query trading calendar: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan trade date: %w", err)
		}
		dates = append(dates, contracts.TruncateDay(d))
	}
	return dates, rows.Err()
}

// Codes returns every code with at least one price row
func (r *Repository) Codes(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT code FROM data.daily_prices ORDER BY code`)
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
