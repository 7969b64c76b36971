package s0_data

import (
	"context"
	"fmt"
)

// Schema creates every table the Repository reads and writes. Statements are idempotent.
var Schema = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,
	`CREATE SCHEMA IF NOT EXISTS signals`,
	`CREATE TABLE IF NOT EXISTS data.daily_prices (
		code           TEXT NOT NULL,
		trade_date     DATE NOT NULL,
		open           DOUBLE PRECISION,
		high           DOUBLE PRECISION,
		low            DOUBLE PRECISION,
		close          DOUBLE PRECISION,
		volume         DOUBLE PRECISION,
		turnover_value DOUBLE PRECISION,
		adj_factor     DOUBLE PRECISION,
		adj_open       DOUBLE PRECISION,
		adj_high       DOUBLE PRECISION,
		adj_low        DOUBLE PRECISION,
		adj_close      DOUBLE PRECISION,
		adj_volume     DOUBLE PRECISION,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (code, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON data.daily_prices (trade_date)`,
	`CREATE TABLE IF NOT EXISTS data.statements (
		disclosure_number TEXT PRIMARY KEY,
		local_code        TEXT NOT NULL,
		disclosed_at      TIMESTAMP NOT NULL,
		type_of_period    TEXT,
		payload           JSONB NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_code ON data.statements (local_code, disclosed_at)`,
	`CREATE TABLE IF NOT EXISTS data.listed_info (
		code            TEXT PRIMARY KEY,
		info_date       DATE,
		company_name    TEXT,
		company_name_en TEXT,
		sector17_code   TEXT,
		sector17_name   TEXT,
		sector33_code   TEXT,
		sector33_name   TEXT,
		scale_category  TEXT,
		market_code     TEXT,
		market_name     TEXT,
		deleted         BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS signals.fundamental (
		local_code      TEXT NOT NULL,
		disclosed_at    TIMESTAMP NOT NULL,
		type_of_period  TEXT,
		eps_yoy_fy      DOUBLE PRECISION,
		eps_yoy_q       DOUBLE PRECISION,
		op_margin_delta DOUBLE PRECISION,
		feps_revision   DOUBLE PRECISION,
		cf_quality      DOUBLE PRECISION,
		eta_delta       DOUBLE PRECISION,
		leverage        DOUBLE PRECISION,
		turnaround      BOOLEAN NOT NULL DEFAULT FALSE,
		treasury_delta  DOUBLE PRECISION,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (local_code, disclosed_at)
	)`,
	`CREATE TABLE IF NOT EXISTS signals.technical_indicators (
		code         TEXT NOT NULL,
		signal_date  DATE NOT NULL,
		signal_ma    BOOLEAN NOT NULL,
		signal_rsi   BOOLEAN NOT NULL,
		signal_adx   BOOLEAN NOT NULL,
		signal_bb    BOOLEAN NOT NULL,
		signal_macd  BOOLEAN NOT NULL,
		signal_count INTEGER NOT NULL,
		overheating  BOOLEAN NOT NULL,
		first        BOOLEAN NOT NULL,
		bb_lower     BOOLEAN NOT NULL,
		short_count  INTEGER NOT NULL,
		oversold     BOOLEAN NOT NULL,
		short_first  BOOLEAN NOT NULL,
		PRIMARY KEY (code, signal_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_technical_date ON signals.technical_indicators (signal_date)`,
}

// Migrate applies Schema
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
