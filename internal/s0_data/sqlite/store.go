// Package sqlite is a single-file contracts.Store on modernc.org/sqlite.
// Dates are stored as ISO text so string comparison orders them.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/database"
)

const timestampLayout = "2006-01-02T15:04:05"

// Store implements contracts.Store on a sqlite file
type Store struct {
	db *database.SQLite
}

var _ contracts.Store = (*Store)(nil)

// Open opens path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	return s.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS prices (
			code           TEXT NOT NULL,
			date           TEXT NOT NULL,
			open           REAL,
			high           REAL,
			low            REAL,
			close          REAL,
			volume         REAL,
			turnover_value REAL,
			adj_factor     REAL,
			adj_open       REAL,
			adj_high       REAL,
			adj_low        REAL,
			adj_close      REAL,
			adj_volume     REAL,
			PRIMARY KEY (code, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_date ON prices(date)`,
		`CREATE TABLE IF NOT EXISTS statements (
			disclosure_number TEXT PRIMARY KEY,
			local_code        TEXT NOT NULL,
			disclosed_at      TEXT NOT NULL,
			payload           TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_statements_code ON statements(local_code, disclosed_at)`,
		`CREATE TABLE IF NOT EXISTS listed_info (
			code    TEXT PRIMARY KEY,
			date    TEXT,
			market  TEXT,
			deleted INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fundamental_signals (
			local_code      TEXT NOT NULL,
			disclosed_at    TEXT NOT NULL,
			type_of_period  TEXT,
			eps_yoy_fy      REAL,
			eps_yoy_q       REAL,
			op_margin_delta REAL,
			feps_revision   REAL,
			cf_quality      REAL,
			eta_delta       REAL,
			leverage        REAL,
			turnaround      INTEGER NOT NULL DEFAULT 0,
			treasury_delta  REAL,
			created_at      TEXT,
			PRIMARY KEY (local_code, disclosed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS technical_indicators (
			code         TEXT NOT NULL,
			signal_date  TEXT NOT NULL,
			signal_ma    INTEGER NOT NULL,
			signal_rsi   INTEGER NOT NULL,
			signal_adx   INTEGER NOT NULL,
			signal_bb    INTEGER NOT NULL,
			signal_macd  INTEGER NOT NULL,
			signal_count INTEGER NOT NULL,
			overheating  INTEGER NOT NULL,
			first        INTEGER NOT NULL,
			bb_lower     INTEGER NOT NULL,
			short_count  INTEGER NOT NULL,
			oversold     INTEGER NOT NULL,
			short_first  INTEGER NOT NULL,
			PRIMARY KEY (code, signal_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_technical_date ON technical_indicators(signal_date)`,
	)
}

// Close closes the database file
func (s *Store) Close() error {
	return s.db.Close()
}

func day(t time.Time) string {
	return t.Format(contracts.DateLayout)
}

func stamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseStamp(v string) (time.Time, error) {
	if len(v) == len(contracts.DateLayout) {
		return time.Parse(contracts.DateLayout, v)
	}
	return time.Parse(timestampLayout, v)
}

// SavePrices implements contracts.PriceWriter
func (s *Store) SavePrices(ctx context.Context, bars []contracts.PriceBar) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range bars {
			_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO prices
				(code, date, open, high, low, close, volume, turnover_value,
				 adj_factor, adj_open, adj_high, adj_low, adj_close, adj_volume)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				b.Code, day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume, b.TurnoverValue,
				b.AdjFactor, b.AdjOpen, b.AdjHigh, b.AdjLow, b.AdjClose, b.AdjVolume,
			)
			if err != nil {
				return fmt.Errorf("insert price for %s: %w", b.Code, err)
			}
		}
		return nil
	})
}

const priceSelect = `SELECT code, date, open, high, low, close, volume, turnover_value,
	adj_factor, adj_open, adj_high, adj_low, adj_close, adj_volume FROM prices`

type scanner interface {
	Scan(dest ...any) error
}

func scanPrice(row scanner) (contracts.PriceBar, error) {
	var (
		b contracts.PriceBar
		d string
	)
	err := row.Scan(&b.Code, &d, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TurnoverValue,
		&b.AdjFactor, &b.AdjOpen, &b.AdjHigh, &b.AdjLow, &b.AdjClose, &b.AdjVolume)
	if err != nil {
		return b, err
	}
	b.Date, err = time.Parse(contracts.DateLayout, d)
	return b, err
}

// PriceHistory implements contracts.PriceStore
func (s *Store) PriceHistory(ctx context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	rows, err := s.db.DB.QueryContext(ctx, priceSelect+` WHERE code = ? AND date BETWEEN ? AND ? ORDER BY date`,
		code, day(from), day(to))
	if err != nil {
		return nil, fmt.Errorf("query prices for %s: %w", code, err)
	}
	defer rows.Close()

	var out []contracts.PriceBar
	for rows.Next() {
		b, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PriceAt implements contracts.PriceStore
func (s *Store) PriceAt(ctx context.Context, code string, date time.Time) (*contracts.PriceBar, error) {
	b, err := scanPrice(s.db.DB.QueryRowContext(ctx, priceSelect+` WHERE code = ? AND date = ?`, code, day(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query price for %s: %w", code, err)
	}
	return &b, nil
}

// TradingCalendar implements contracts.PriceStore
func (s *Store) TradingCalendar(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	values, err := s.strings(ctx, `SELECT DISTINCT date FROM prices WHERE date BETWEEN ? AND ? ORDER BY date`, day(from), day(to))
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := time.Parse(contracts.DateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("parse trade date %q: %w", v, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Codes implements contracts.PriceStore
func (s *Store) Codes(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT code FROM prices ORDER BY code`)
}

// SaveStatements implements contracts.StatementWriter
func (s *Store) SaveStatements(ctx context.Context, records []contracts.StatementRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range records {
			payload, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal statement %s: %w", r.DisclosureNumber, err)
			}
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO statements
				(disclosure_number, local_code, disclosed_at, payload) VALUES (?,?,?,?)`,
				r.DisclosureNumber, r.LocalCode, stamp(r.DisclosedAt()), string(payload))
			if err != nil {
				return fmt.Errorf("insert statement %s: %w", r.DisclosureNumber, err)
			}
		}
		return nil
	})
}

// StatementHistory implements contracts.StatementStore
func (s *Store) StatementHistory(ctx context.Context, code string) ([]contracts.StatementRecord, error) {
	payloads, err := s.strings(ctx, `SELECT payload FROM statements WHERE local_code = ?
		ORDER BY disclosed_at, disclosure_number`, code)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.StatementRecord, 0, len(payloads))
	for _, p := range payloads {
		var r contracts.StatementRecord
		if err := json.Unmarshal([]byte(p), &r); err != nil {
			return nil, fmt.Errorf("unmarshal statement: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// StatementCodes implements contracts.StatementStore
func (s *Store) StatementCodes(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT local_code FROM statements ORDER BY local_code`)
}

// ListedInfo implements contracts.ListedStore
func (s *Store) ListedInfo(ctx context.Context, code string) (*contracts.ListedInfo, error) {
	var (
		payload string
		deleted bool
	)
	err := s.db.DB.QueryRowContext(ctx, `SELECT payload, deleted FROM listed_info WHERE code = ?`, code).
		Scan(&payload, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query listed info for %s: %w", code, err)
	}
	var info contracts.ListedInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return nil, fmt.Errorf("unmarshal listed info: %w", err)
	}
	info.Deleted = deleted
	return &info, nil
}

// ActiveCodes implements contracts.ListedStore
func (s *Store) ActiveCodes(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT code FROM listed_info WHERE deleted = 0 AND COALESCE(market, '') <> ? ORDER BY code`,
		contracts.MarketCodeOther)
}

// SaveListedInfo implements contracts.ListedStore. An empty listing is ignored.
func (s *Store) SaveListedInfo(ctx context.Context, rows []contracts.ListedInfo) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE listed_info SET deleted = 1`); err != nil {
			return fmt.Errorf("mark listed info: %w", err)
		}
		for _, info := range rows {
			info.Deleted = false
			payload, err := json.Marshal(info)
			if err != nil {
				return fmt.Errorf("marshal listed info %s: %w", info.Code, err)
			}
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO listed_info (code, date, market, deleted, payload)
				VALUES (?,?,?,0,?)`, info.Code, day(info.Date), info.MarketCode, string(payload))
			if err != nil {
				return fmt.Errorf("insert listed info %s: %w", info.Code, err)
			}
		}
		return nil
	})
}

// UpsertFundamentalSignal implements contracts.SignalStore
func (s *Store) UpsertFundamentalSignal(ctx context.Context, sig contracts.FundamentalSignal) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx, `INSERT OR IGNORE INTO fundamental_signals
		(local_code, disclosed_at, type_of_period, eps_yoy_fy, eps_yoy_q, op_margin_delta,
		 feps_revision, cf_quality, eta_delta, leverage, turnaround, treasury_delta, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sig.LocalCode, stamp(sig.DisclosedAt), sig.TypeOfCurrentPeriod, sig.EPSYoYFY, sig.EPSYoYQ, sig.OpMarginDelta,
		sig.FEPSRevision, sig.CFQuality, sig.ETADelta, sig.Leverage, sig.Turnaround, sig.TreasuryDelta, stamp(sig.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert fundamental signal for %s: %w", sig.LocalCode, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpsertTechnicalSignal implements contracts.SignalStore
func (s *Store) UpsertTechnicalSignal(ctx context.Context, sig contracts.TechnicalSignal) error {
	_, err := s.db.DB.ExecContext(ctx, `INSERT OR REPLACE INTO technical_indicators
		(code, signal_date, signal_ma, signal_rsi, signal_adx, signal_bb, signal_macd,
		 signal_count, overheating, first, bb_lower, short_count, oversold, short_first)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sig.Code, day(sig.SignalDate), sig.MA, sig.RSI, sig.ADX, sig.BB, sig.MACD,
		sig.SignalCount, sig.Overheating, sig.First, sig.BBLower, sig.ShortCount, sig.Oversold, sig.ShortFirst,
	)
	if err != nil {
		return fmt.Errorf("upsert technical signal for %s: %w", sig.Code, err)
	}
	return nil
}

// QuerySignals implements contracts.SignalStore
func (s *Store) QuerySignals(ctx context.Context, q contracts.SignalQuery) ([]contracts.SignalRow, error) {
	from := day(q.From)
	until := day(contracts.TruncateDay(q.To).AddDate(0, 0, 1))

	if q.Kind == contracts.KindFundamental {
		return s.queryFundamental(ctx, q.Code, from, until)
	}

	rows, err := s.db.DB.QueryContext(ctx, `SELECT code, signal_date, signal_ma, signal_rsi, signal_adx, signal_bb,
		signal_macd, signal_count, overheating, first, bb_lower, short_count, oversold, short_first
		FROM technical_indicators
		WHERE signal_date >= ? AND signal_date < ? AND (? = '' OR code = ?)
		ORDER BY signal_date, code`, from, until, q.Code, q.Code)
	if err != nil {
		return nil, fmt.Errorf("query technical signals: %w", err)
	}
	defer rows.Close()

	var out []contracts.SignalRow
	for rows.Next() {
		var (
			sig contracts.TechnicalSignal
			d   string
		)
		err := rows.Scan(&sig.Code, &d, &sig.MA, &sig.RSI, &sig.ADX, &sig.BB, &sig.MACD,
			&sig.SignalCount, &sig.Overheating, &sig.First, &sig.BBLower, &sig.ShortCount, &sig.Oversold, &sig.ShortFirst)
		if err != nil {
			return nil, fmt.Errorf("scan technical signal: %w", err)
		}
		if sig.SignalDate, err = time.Parse(contracts.DateLayout, d); err != nil {
			return nil, fmt.Errorf("parse signal date %q: %w", d, err)
		}
		if !q.Matches(&sig) {
			continue
		}
		out = append(out, contracts.SignalRow{
			Kind:      contracts.KindTechnical,
			Code:      sig.Code,
			Date:      sig.SignalDate,
			Technical: &sig,
		})
	}
	return out, rows.Err()
}

func (s *Store) queryFundamental(ctx context.Context, code, from, until string) ([]contracts.SignalRow, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT local_code, disclosed_at, COALESCE(type_of_period, ''),
		eps_yoy_fy, eps_yoy_q, op_margin_delta, feps_revision, cf_quality, eta_delta, leverage,
		turnaround, treasury_delta, COALESCE(created_at, '')
		FROM fundamental_signals
		WHERE disclosed_at >= ? AND disclosed_at < ? AND (? = '' OR local_code = ?)
		ORDER BY disclosed_at, local_code`, from, until, code, code)
	if err != nil {
		return nil, fmt.Errorf("query fundamental signals: %w", err)
	}
	defer rows.Close()

	var out []contracts.SignalRow
	for rows.Next() {
		var (
			sig           contracts.FundamentalSignal
			at, createdAt string
		)
		err := rows.Scan(&sig.LocalCode, &at, &sig.TypeOfCurrentPeriod,
			&sig.EPSYoYFY, &sig.EPSYoYQ, &sig.OpMarginDelta, &sig.FEPSRevision, &sig.CFQuality, &sig.ETADelta,
			&sig.Leverage, &sig.Turnaround, &sig.TreasuryDelta, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan fundamental signal: %w", err)
		}
		if sig.DisclosedAt, err = parseStamp(at); err != nil {
			return nil, fmt.Errorf("parse disclosed_at %q: %w", at, err)
		}
		if createdAt != "" {
			sig.CreatedAt, _ = parseStamp(createdAt)
		}
		out = append(out, contracts.SignalRow{
			Kind:        contracts.KindFundamental,
			Code:        sig.LocalCode,
			Date:        sig.DisclosedAt,
			Fundamental: &sig,
		})
	}
	return out, rows.Err()
}

// Summary implements contracts.Store
func (s *Store) Summary(ctx context.Context) ([]contracts.TableSummary, error) {
	tables := []struct{ name, table, column string }{
		{"prices", "prices", "date"},
		{"statements", "statements", "disclosed_at"},
		{"listed_info", "listed_info", "date"},
		{"fundamental_signals", "fundamental_signals", "disclosed_at"},
		{"technical_indicators", "technical_indicators", "signal_date"},
	}

	out := make([]contracts.TableSummary, 0, len(tables))
	for _, t := range tables {
		var (
			count  int64
			lo, hi sql.NullString
		)
		query := fmt.Sprintf(`SELECT COUNT(*), MIN(%[1]s), MAX(%[1]s) FROM %[2]s`, t.column, t.table)
		if err := s.db.DB.QueryRowContext(ctx, query).Scan(&count, &lo, &hi); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", t.table, err)
		}
		ts := contracts.TableSummary{Table: t.name, Rows: count}
		for _, v := range []sql.NullString{lo, hi} {
			if !v.Valid || len(v.String) < len(contracts.DateLayout) {
				continue
			}
			if d, err := time.Parse(contracts.DateLayout, v.String[:len(contracts.DateLayout)]); err == nil {
				ts.Widen(d)
			}
		}
		out = append(out, ts)
	}
	return out, nil
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
