package contracts

import (
	"sort"
	"time"
)

// Side is the direction of a simulated position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid reports whether s is a known side
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// SignalKind selects which signal table a query reads
type SignalKind string

const (
	KindTechnical   SignalKind = "technical"
	KindFundamental SignalKind = "fundamental"
)

// FundamentalSignal holds the ratios derived from one disclosure and its predecessors.
// ⭐ SSOT: (LocalCode, DisclosedAt) is written once and never overwritten
type FundamentalSignal struct {
	LocalCode           string    `json:"local_code"`
	DisclosedAt         time.Time `json:"disclosed_at"`
	TypeOfCurrentPeriod string    `json:"type_of_current_period"`
	EPSYoYFY            *float64  `json:"eps_yoy_fy"`
	EPSYoYQ             *float64  `json:"eps_yoy_q"`
	OpMarginDelta       *float64  `json:"op_margin_delta"`
	FEPSRevision        *float64  `json:"feps_revision"`
	CFQuality           *float64  `json:"cf_quality"`
	ETADelta            *float64  `json:"eta_delta"`
	Leverage            *float64  `json:"leverage"`
	Turnaround          bool      `json:"turnaround"`
	TreasuryDelta       *float64  `json:"treasury_delta"`
	CreatedAt           time.Time `json:"created_at"`
}

// TechnicalSignal is one symbol's indicator flags for one trading date
type TechnicalSignal struct {
	Code        string    `json:"code"`
	SignalDate  time.Time `json:"signal_date"`
	MA          bool      `json:"signal_ma"`
	RSI         bool      `json:"signal_rsi"`
	ADX         bool      `json:"signal_adx"`
	BB          bool      `json:"signal_bb"`
	MACD        bool      `json:"signal_macd"`
	SignalCount int       `json:"signals_count"`
	Overheating bool      `json:"signals_overheating"`
	First       bool      `json:"signals_first"`

	// short regime mirror
	BBLower    bool `json:"signal_bb_lower"`
	ShortCount int  `json:"short_count"`
	Oversold   bool `json:"signals_oversold"`
	ShortFirst bool `json:"short_first"`
}

// CountFor returns the weighted count for the given side
func (t *TechnicalSignal) CountFor(side Side) int {
	if side == SideShort {
		return t.ShortCount
	}
	return t.SignalCount
}

// FirstFor returns the first-occurrence flag for the given side
func (t *TechnicalSignal) FirstFor(side Side) bool {
	if side == SideShort {
		return t.ShortFirst
	}
	return t.First
}

// StretchedFor reports whether price is stretched against the side (overheated for long, oversold for short)
func (t *TechnicalSignal) StretchedFor(side Side) bool {
	if side == SideShort {
		return t.Oversold
	}
	return t.Overheating
}

// SignalQuery filters stored signals. From and To are inclusive dates.
type SignalQuery struct {
	Kind             SignalKind
	Code             string // optional, restricts to one symbol
	From             time.Time
	To               time.Time
	MinCount         int  // technical only
	FirstOnly        bool // technical only
	ExcludeStretched bool // technical only
	Side             Side // technical only; empty means long
}

// Matches applies the technical filters to a row. Date bounds are the store's job.
func (q SignalQuery) Matches(t *TechnicalSignal) bool {
	side := q.Side
	if side == "" {
		side = SideLong
	}
	if q.Code != "" && t.Code != q.Code {
		return false
	}
	if t.CountFor(side) < q.MinCount {
		return false
	}
	if q.FirstOnly && !t.FirstFor(side) {
		return false
	}
	if q.ExcludeStretched && t.StretchedFor(side) {
		return false
	}
	return true
}

// SignalRow is one row returned by QuerySignals; exactly one payload is set
type SignalRow struct {
	Kind        SignalKind         `json:"kind"`
	Code        string             `json:"code"`
	Date        time.Time          `json:"date"`
	Technical   *TechnicalSignal   `json:"technical,omitempty"`
	Fundamental *FundamentalSignal `json:"fundamental,omitempty"`
}

// SortSignalRows orders rows by (date, code)
func SortSignalRows(rows []SignalRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Code < rows[j].Code
	})
}
