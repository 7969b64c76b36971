package s0_data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/kabu/internal/contracts"
)

const fundamentalColumns = `local_code, disclosed_at, COALESCE(type_of_period, ''), eps_yoy_fy, eps_yoy_q, op_margin_delta,
	feps_revision, cf_quality, eta_delta, leverage, turnaround, treasury_delta, created_at`

const technicalColumns = `code, signal_date, signal_ma, signal_rsi, signal_adx, signal_bb, signal_macd,
	signal_count, overheating, first, bb_lower, short_count, oversold, short_first`

// UpsertFundamentalSignal inserts a screened disclosure once.
// ⭐ SSOT: an existing (local_code, disclosed_at) row is never overwritten
func (r *Repository) UpsertFundamentalSignal(ctx context.Context, sig contracts.FundamentalSignal) (bool, error) {
	query := `
		INSERT INTO signals.fundamental (
			local_code, disclosed_at, type_of_period, eps_yoy_fy, eps_yoy_q, op_margin_delta,
			feps_revision, cf_quality, eta_delta, leverage, turnaround, treasury_delta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (local_code, disclosed_at) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		sig.LocalCode, sig.DisclosedAt.UTC(), sig.TypeOfCurrentPeriod, sig.EPSYoYFY, sig.EPSYoYQ, sig.OpMarginDelta,
		sig.FEPSRevision, sig.CFQuality, sig.ETADelta, sig.Leverage, sig.Turnaround, sig.TreasuryDelta, sig.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert fundamental signal for %s: %w", sig.LocalCode, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertTechnicalSignal replaces the indicator row for (code, signal_date)
func (r *Repository) UpsertTechnicalSignal(ctx context.Context, sig contracts.TechnicalSignal) error {
	query := `
		INSERT INTO signals.technical_indicators (` + technicalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (code, signal_date) DO UPDATE SET
			signal_ma = EXCLUDED.signal_ma,
			signal_rsi = EXCLUDED.signal_rsi,
			signal_adx = EXCLUDED.signal_adx,
			signal_bb = EXCLUDED.signal_bb,
			signal_macd = EXCLUDED.signal_macd,
			signal_count = EXCLUDED.signal_count,
			overheating = EXCLUDED.overheating,
			first = EXCLUDED.first,
			bb_lower = EXCLUDED.bb_lower,
			short_count = EXCLUDED.short_count,
			oversold = EXCLUDED.oversold,
			short_first = EXCLUDED.short_first
	`

	_, err := r.db.Exec(ctx, query,
		sig.Code, contracts.TruncateDay(sig.SignalDate), sig.MA, sig.RSI, sig.ADX, sig.BB, sig.MACD,
		sig.SignalCount, sig.Overheating, sig.First, sig.BBLower, sig.ShortCount, sig.Oversold, sig.ShortFirst,
	)
	if err != nil {
		return fmt.Errorf("upsert technical signal for %s: %w", sig.Code, err)
	}
	return nil
}

// QuerySignals reads one signal table over an inclusive date range.
// Dates and code are filtered in SQL; the count, first and stretch filters use SignalQuery.Matches.
func (r *Repository) QuerySignals(ctx context.Context, q contracts.SignalQuery) ([]contracts.SignalRow, error) {
	from := contracts.TruncateDay(q.From)
	until := contracts.TruncateDay(q.To).AddDate(0, 0, 1)

	if q.Kind == contracts.KindFundamental {
		query := `
			SELECT ` + fundamentalColumns + `
			FROM signals.fundamental
			WHERE disclosed_at >= $1 AND disclosed_at < $2 AND ($3 = '' OR local_code = $3)
			ORDER BY disclosed_at, local_code
		`
		rows, err := r.db.Query(ctx, query, from, until, q.Code)
		if err != nil {
			return nil, fmt.Errorf("query fundamental signals: %w", err)
		}
		defer rows.Close()

		var out []contracts.SignalRow
		for rows.Next() {
			sig, err := scanFundamental(rows)
			if err != nil {
				return nil, fmt.Errorf("scan fundamental signal: %w", err)
			}
			out = append(out, contracts.SignalRow{
				Kind:        contracts.KindFundamental,
				Code:        sig.LocalCode,
				Date:        sig.DisclosedAt,
				Fundamental: sig,
			})
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		contracts.SortSignalRows(out)
		return out, nil
	}

	query := `
		SELECT ` + technicalColumns + `
		FROM signals.technical_indicators
		WHERE signal_date >= $1 AND signal_date < $2 AND ($3 = '' OR code = $3)
		ORDER BY signal_date, code
	`
	rows, err := r.db.Query(ctx, query, from, until, q.Code)
	if err != nil {
		return nil, fmt.Errorf("query technical signals: %w", err)
	}
	defer rows.Close()

	var out []contracts.SignalRow
	for rows.Next() {
		sig, err := scanTechnical(rows)
		if err != nil {
			return nil, fmt.Errorf("scan technical signal: %w", err)
		}
		if !q.Matches(sig) {
			continue
		}
		out = append(out, contracts.SignalRow{
			Kind:      contracts.KindTechnical,
			Code:      sig.Code,
			Date:      sig.SignalDate,
			Technical: sig,
		})
	}
	return out, rows.Err()
}

func scanFundamental(row pgx.Row) (*contracts.FundamentalSignal, error) {
	var s contracts.FundamentalSignal
	err := row.Scan(
		&s.LocalCode, &s.DisclosedAt, &s.TypeOfCurrentPeriod, &s.EPSYoYFY, &s.EPSYoYQ, &s.OpMarginDelta,
		&s.FEPSRevision, &s.CFQuality, &s.ETADelta, &s.Leverage, &s.Turnaround, &s.TreasuryDelta, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanTechnical(row pgx.Row) (*contracts.TechnicalSignal, error) {
	var s contracts.TechnicalSignal
	err := row.Scan(
		&s.Code, &s.SignalDate, &s.MA, &s.RSI, &s.ADX, &s.BB, &s.MACD,
		&s.SignalCount, &s.Overheating, &s.First, &s.BBLower, &s.ShortCount, &s.Oversold, &s.ShortFirst,
	)
	if err != nil {
		return nil, err
	}
	s.SignalDate = contracts.TruncateDay(s.SignalDate)
	return &s, nil
}
