package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/kabu/internal/calendar"
	"github.com/wonny/kabu/internal/contracts"
)

// ExitDecision is where and why a position was closed
type ExitDecision struct {
	Date   time.Time
	Price  float64
	Reason contracts.ExitReason
}

// ExitRule picks the exit from the price rows strictly after the entry date.
// future is ascending and non-empty; implementations never invent a price outside it.
type ExitRule interface {
	Validate() error
	// Horizon is the holding period in trading days
	Horizon() int
	Decide(side contracts.Side, entryDate time.Time, entryPrice float64, future []contracts.PriceBar, cal *calendar.Calendar) (ExitDecision, error)
}

// FixedHorizon closes HoldDays trading days after entry
type FixedHorizon struct {
	HoldDays int
}

// Validate implements ExitRule
func (r FixedHorizon) Validate() error {
	if r.HoldDays <= 0 {
		return contracts.NewConfigurationError("hold_days", "must be > 0, got %d", r.HoldDays)
	}
	return nil
}

// Horizon implements ExitRule
func (r FixedHorizon) Horizon() int { return r.HoldDays }

// Decide implements ExitRule
func (r FixedHorizon) Decide(side contracts.Side, entryDate time.Time, entryPrice float64, future []contracts.PriceBar, cal *calendar.Calendar) (ExitDecision, error) {
	return scan(side, entryDate, entryPrice, 0, r.HoldDays, future, cal)
}

// StopOrHorizon closes on the first day the adjusted close crosses the stop
// (below entry for long, above for short) or on the horizon day, whichever comes first.
type StopOrHorizon struct {
	HoldDays    int
	StopLossPct float64 // fraction, e.g. 0.05
}

// Validate implements ExitRule
func (r StopOrHorizon) Validate() error {
	if r.HoldDays <= 0 {
		return contracts.NewConfigurationError("hold_days", "must be > 0, got %d", r.HoldDays)
	}
	if r.StopLossPct < 0 || r.StopLossPct >= 1 {
		return contracts.NewConfigurationError("stop_loss_pct", "must be in [0, 1), got %v", r.StopLossPct)
	}
	return nil
}

// Horizon implements ExitRule
func (r StopOrHorizon) Horizon() int { return r.HoldDays }

// Decide implements ExitRule
func (r StopOrHorizon) Decide(side contracts.Side, entryDate time.Time, entryPrice float64, future []contracts.PriceBar, cal *calendar.Calendar) (ExitDecision, error) {
	return scan(side, entryDate, entryPrice, r.StopLossPct, r.HoldDays, future, cal)
}

// StopPrice is the adjusted close that triggers the stop for side
func StopPrice(side contracts.Side, entryPrice, stopPct float64) float64 {
	one := decimal.NewFromInt(1)
	pct := decimal.NewFromFloat(stopPct)
	factor := one.Sub(pct)
	if side == contracts.SideShort {
		factor = one.Add(pct)
	}
	return decimal.NewFromFloat(entryPrice).Mul(factor).InexactFloat64()
}

// scan walks future rows in date order. stopPct 0 disables the stop.
// When the rows run out first the position is soft-closed at the last row.
func scan(side contracts.Side, entryDate time.Time, entryPrice, stopPct float64, hold int, future []contracts.PriceBar, cal *calendar.Calendar) (ExitDecision, error) {
	cutoff, err := cal.Offset(entryDate, hold)
	if err != nil {
		return ExitDecision{}, err
	}
	stop := StopPrice(side, entryPrice, stopPct)

	for _, bar := range future {
		px := bar.AdjClose
		if px <= 0 {
			continue
		}
		if stopPct > 0 {
			hit := px <= stop
			if side == contracts.SideShort {
				hit = px >= stop
			}
			if hit {
				return ExitDecision{Date: bar.Date, Price: px, Reason: contracts.ExitStop}, nil
			}
		}
		if !bar.Date.Before(cutoff) {
			return ExitDecision{Date: bar.Date, Price: px, Reason: contracts.ExitHorizon}, nil
		}
	}

	for i := len(future) - 1; i >= 0; i-- {
		if future[i].AdjClose > 0 {
			return ExitDecision{Date: future[i].Date, Price: future[i].AdjClose, Reason: contracts.ExitSoftClose}, nil
		}
	}
	return ExitDecision{}, errNoExitData
}
