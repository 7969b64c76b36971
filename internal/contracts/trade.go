package contracts

import "time"

// ExitReason records which rule closed a simulated position
type ExitReason string

const (
	ExitHorizon   ExitReason = "horizon"
	ExitStop      ExitReason = "stop"
	ExitSoftClose ExitReason = "soft_close"
)

// Trade is one simulated round trip
// ⭐ SSOT: Shares == floor(capital / EntryPrice) and is always > 0
type Trade struct {
	Code        string             `json:"code"`
	CompanyName string             `json:"company_name,omitempty"`
	Side        Side               `json:"side"`
	Strategy    string             `json:"strategy,omitempty"`
	SignalDate  time.Time          `json:"signal_date"`
	EntryDate   time.Time          `json:"entry_date"`
	EntryPrice  float64            `json:"entry_price"`
	ExitDate    time.Time          `json:"exit_date"`
	ExitPrice   float64            `json:"exit_price"`
	ExitReason  ExitReason         `json:"exit_reason"`
	Shares      int64              `json:"shares"`
	Invested    float64            `json:"invested"`
	Proceeds    float64            `json:"proceeds"`
	Profit      float64            `json:"profit"`
	ReturnPct   float64            `json:"return_pct"` // percent, 10.0 == +10%
	HoldingDays int                `json:"holding_days"`
	Meta        map[string]float64 `json:"meta,omitempty"`
}

// IsWin reports whether the trade made money
func (t *Trade) IsWin() bool {
	return t.Profit > 0
}

// Summary reduces a trade list to scalar statistics
type Summary struct {
	Trades       int     `json:"trades"`
	TotalProfit  float64 `json:"total_profit"`
	WinRate      float64 `json:"win_rate"`
	AvgReturnPct float64 `json:"avg_ret_pct"`
	Sharpe       float64 `json:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown"` // on cumulative profit, as a positive amount
}

// Empty reports whether the summary was built from zero trades
func (s *Summary) Empty() bool {
	return s.Trades == 0
}

// SkipReason explains why a signal produced no trade
type SkipReason string

const (
	SkipNoData              SkipReason = "no data"
	SkipNoEntryPrice        SkipReason = "no entry price"
	SkipInsufficientCapital SkipReason = "insufficient capital"
	SkipNoExitData          SkipReason = "no exit data"
	SkipError               SkipReason = "error"
)

// Skip is a signal the engine could not turn into a trade
type Skip struct {
	Code       string     `json:"code"`
	SignalDate time.Time  `json:"signal_date"`
	Reason     SkipReason `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}
