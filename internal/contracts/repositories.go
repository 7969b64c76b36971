package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: storage interfaces are defined here only

// PriceStore reads daily quotes
type PriceStore interface {
	// PriceHistory returns bars for code with from <= date <= to, ascending by date
	PriceHistory(ctx context.Context, code string, from, to time.Time) ([]PriceBar, error)
	// PriceAt returns the bar for code on date, or nil when absent
	PriceAt(ctx context.Context, code string, date time.Time) (*PriceBar, error)
	// TradingCalendar returns the distinct dates with any price row in [from, to], ascending
	TradingCalendar(ctx context.Context, from, to time.Time) ([]time.Time, error)
	// Codes returns every code with at least one price row
	Codes(ctx context.Context) ([]string, error)
}

// PriceWriter persists quotes, replacing rows with the same (code, date)
type PriceWriter interface {
	SavePrices(ctx context.Context, bars []PriceBar) error
}

// StatementStore reads financial-statement disclosures
type StatementStore interface {
	// StatementHistory returns code's disclosures ascending by disclosure time
	StatementHistory(ctx context.Context, code string) ([]StatementRecord, error)
	// StatementCodes returns every code with at least one disclosure
	StatementCodes(ctx context.Context) ([]string, error)
}

// StatementWriter persists disclosures by DisclosureNumber
type StatementWriter interface {
	SaveStatements(ctx context.Context, records []StatementRecord) error
}

// ListedStore reads and writes the issue master
type ListedStore interface {
	ListedInfo(ctx context.Context, code string) (*ListedInfo, error)
	ActiveCodes(ctx context.Context) ([]string, error)
	// SaveListedInfo upserts rows and marks codes missing from rows as deleted
	SaveListedInfo(ctx context.Context, rows []ListedInfo) error
}

// SignalStore persists derived signals
type SignalStore interface {
	// UpsertFundamentalSignal inserts sig unless (LocalCode, DisclosedAt) exists; reports whether it inserted
	UpsertFundamentalSignal(ctx context.Context, sig FundamentalSignal) (bool, error)
	// UpsertTechnicalSignal replaces the row for (Code, SignalDate)
	UpsertTechnicalSignal(ctx context.Context, sig TechnicalSignal) error
	QuerySignals(ctx context.Context, q SignalQuery) ([]SignalRow, error)
}

// Store is everything a backend provides
type Store interface {
	PriceStore
	PriceWriter
	StatementStore
	StatementWriter
	ListedStore
	SignalStore
	Summary(ctx context.Context) ([]TableSummary, error)
	Close() error
}
