package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/kabu/internal/calendar"
	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/logger"
)

var errNoExitData = fmt.Errorf("no price rows after entry: %w", contracts.ErrDataInsufficient)

// farFuture bounds open-ended date queries
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Engine turns dated signals into simulated trades.
// It only reads from its stores; nothing is written during a run.
// ⭐ SSOT: trade simulation lives here only
type Engine struct {
	prices contracts.PriceStore
	listed contracts.ListedStore // optional, fills Trade.CompanyName
	logger *logger.Logger

	namesMu sync.Mutex
	names   map[string]string
}

// Result holds the trades and the signals that could not be traded
type Result struct {
	RunID    string            `json:"run_id"`
	Strategy string            `json:"strategy"`
	From     time.Time         `json:"from"`
	To       time.Time         `json:"to"`
	Trades   []contracts.Trade `json:"trades"`
	Skips    []contracts.Skip  `json:"skips"`
	Duration time.Duration     `json:"duration"`
}

// NewEngine creates a new backtest engine
func NewEngine(prices contracts.PriceStore, listed contracts.ListedStore, log *logger.Logger) *Engine {
	return &Engine{
		prices: prices,
		listed: listed,
		logger: log,
		names:  make(map[string]string),
	}
}

// RunSingle simulates every entry whose signal fired on signalDate
func (e *Engine) RunSingle(ctx context.Context, signalDate time.Time, s Strategy) (*Result, error) {
	return e.RunRange(ctx, signalDate, signalDate, s)
}

// RunRange simulates every calendar day in [from, to] and returns trades ordered by (signal date, code).
// Days without signals (weekends, holidays) simply contribute nothing.
func (e *Engine) RunRange(ctx context.Context, from, to time.Time, s Strategy) (*Result, error) {
	from, to = contracts.TruncateDay(from), contracts.TruncateDay(to)
	if err := validateRun(from, to, s); err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"strategy": s.Name,
		"side":     s.Side,
		"source":   s.Source.Name(),
		"from":     from.Format(contracts.DateLayout),
		"to":       to.Format(contracts.DateLayout),
		"workers":  s.Workers,
	}).Info("Starting backtest")

	startTime := time.Now()

	cal, err := calendar.Load(ctx, e.prices, from, farFuture)
	if err != nil {
		return nil, err
	}

	days := calendarDays(from, to)
	perDay := make([]dayResult, len(days))

	if s.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Workers)
		for i, d := range days {
			g.Go(func() error {
				r, err := e.runDate(gctx, d, s, cal)
				if err != nil {
					return err
				}
				perDay[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, d := range days {
			r, err := e.runDate(ctx, d, s, cal)
			if err != nil {
				return nil, err
			}
			perDay[i] = r
		}
	}

	result := &Result{
		RunID:    uuid.NewString(),
		Strategy: s.Name,
		From:     from,
		To:       to,
		Trades:   []contracts.Trade{},
		Skips:    []contracts.Skip{},
	}
	for _, r := range perDay {
		result.Trades = append(result.Trades, r.trades...)
		result.Skips = append(result.Skips, r.skips...)
	}
	sortTrades(result.Trades)
	result.Duration = time.Since(startTime)

	e.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"strategy": s.Name,
		"days":     len(days),
		"trades":   len(result.Trades),
		"skipped":  len(result.Skips),
		"duration": result.Duration.Seconds(),
	}).Info("Backtest completed")

	return result, nil
}

// Stream runs the range day by day and hands each trade to fn as soon as its day is done.
// Trades arrive in the same order RunRange returns them; an error from fn stops the run.
// The skips collected so far are returned either way.
func (e *Engine) Stream(ctx context.Context, from, to time.Time, s Strategy, fn func(contracts.Trade) error) ([]contracts.Skip, error) {
	from, to = contracts.TruncateDay(from), contracts.TruncateDay(to)
	if err := validateRun(from, to, s); err != nil {
		return nil, err
	}

	cal, err := calendar.Load(ctx, e.prices, from, farFuture)
	if err != nil {
		return nil, err
	}

	skips := []contracts.Skip{}
	for _, d := range calendarDays(from, to) {
		if err := ctx.Err(); err != nil {
			return skips, err
		}
		r, err := e.runDate(ctx, d, s, cal)
		if err != nil {
			return skips, err
		}
		skips = append(skips, r.skips...)
		sortTrades(r.trades)
		for _, t := range r.trades {
			if err := fn(t); err != nil {
				return skips, err
			}
		}
	}
	return skips, nil
}

type dayResult struct {
	trades []contracts.Trade
	skips  []contracts.Skip
}

// runDate fails only when the signal source itself fails; per-entry problems become skips
func (e *Engine) runDate(ctx context.Context, date time.Time, s Strategy, cal *calendar.Calendar) (dayResult, error) {
	var out dayResult

	entries, err := s.Source.Signals(ctx, date)
	if err != nil {
		return out, fmt.Errorf("load %s signals for %s: %w", s.Source.Name(), date.Format(contracts.DateLayout), err)
	}

	for _, entry := range entries {
		trade, skip := e.simulate(ctx, entry, s, cal)
		if skip != nil {
			e.logger.WithFields(map[string]interface{}{
				"code":        skip.Code,
				"signal_date": skip.SignalDate.Format(contracts.DateLayout),
				"reason":      string(skip.Reason),
				"detail":      skip.Detail,
			}).Warn("Signal skipped")
			out.skips = append(out.skips, *skip)
			continue
		}
		out.trades = append(out.trades, *trade)
	}
	return out, nil
}

// simulate turns one entry into a trade or a skip
func (e *Engine) simulate(ctx context.Context, entry Entry, s Strategy, cal *calendar.Calendar) (*contracts.Trade, *contracts.Skip) {
	signalDate := contracts.TruncateDay(entry.SignalDate)
	skip := func(reason contracts.SkipReason, detail string) (*contracts.Trade, *contracts.Skip) {
		return nil, &contracts.Skip{Code: entry.Code, SignalDate: signalDate, Reason: reason, Detail: detail}
	}

	entryDate, err := cal.Offset(signalDate, s.EntryOffsetDays)
	if err != nil {
		return skip(contracts.SkipNoData, err.Error())
	}

	bar, err := e.prices.PriceAt(ctx, entry.Code, entryDate)
	if err != nil {
		return skip(contracts.SkipError, err.Error())
	}
	if bar == nil || bar.AdjClose <= 0 {
		return skip(contracts.SkipNoEntryPrice, entryDate.Format(contracts.DateLayout))
	}
	entryPrice := bar.AdjClose

	shares := Shares(s.Capital, entryPrice)
	if shares <= 0 {
		return skip(contracts.SkipInsufficientCapital, fmt.Sprintf("price %v > capital %v", entryPrice, s.Capital))
	}

	cutoff, err := cal.Offset(entryDate, s.Exit.Horizon())
	if err != nil {
		return skip(contracts.SkipNoData, err.Error())
	}
	future, err := e.futureRows(ctx, entry.Code, entryDate, cutoff)
	if err != nil {
		return skip(contracts.SkipError, err.Error())
	}
	if len(future) == 0 {
		return skip(contracts.SkipNoExitData, "")
	}

	exit, err := s.Exit.Decide(s.Side, entryDate, entryPrice, future, cal)
	if err != nil {
		if errors.Is(err, contracts.ErrDataInsufficient) {
			return skip(contracts.SkipNoExitData, err.Error())
		}
		return skip(contracts.SkipError, err.Error())
	}

	trade := Settle(s.Side, shares, entryPrice, exit.Price)
	trade.Code = entry.Code
	trade.CompanyName = e.companyName(ctx, entry.Code)
	trade.Strategy = s.Name
	trade.SignalDate = signalDate
	trade.EntryDate = entryDate
	trade.ExitDate = exit.Date
	trade.ExitReason = exit.Reason
	trade.HoldingDays = int(exit.Date.Sub(entryDate).Hours() / 24)
	trade.Meta = entry.Meta
	return &trade, nil
}

// futureRows returns the bars after entryDate up to cutoff. When the code has no usable bar on
// or after cutoff (a halt on the horizon day), the rows continue up to the next bar that trades,
// so the exit lands there instead of soft-closing while data still exists.
func (e *Engine) futureRows(ctx context.Context, code string, entryDate, cutoff time.Time) ([]contracts.PriceBar, error) {
	future, err := e.prices.PriceHistory(ctx, code, entryDate.AddDate(0, 0, 1), cutoff)
	if err != nil {
		return nil, err
	}
	if n := len(future); n > 0 && !future[n-1].Date.Before(cutoff) && future[n-1].AdjClose > 0 {
		return future, nil
	}

	later, err := e.prices.PriceHistory(ctx, code, cutoff.AddDate(0, 0, 1), farFuture)
	if err != nil {
		return nil, err
	}
	for _, bar := range later {
		future = append(future, bar)
		if bar.AdjClose > 0 {
			break
		}
	}
	return future, nil
}

// Shares is floor(capital / price); 0 when the price is not positive
func Shares(capital, price float64) int64 {
	if price <= 0 || capital <= 0 {
		return 0
	}
	q, _ := decimal.NewFromFloat(capital).QuoRem(decimal.NewFromFloat(price), 0)
	return q.IntPart()
}

// Settle computes the money fields of a round trip. Short profit is the exact negation of long profit.
func Settle(side contracts.Side, shares int64, entryPrice, exitPrice float64) contracts.Trade {
	qty := decimal.NewFromInt(shares)
	entry := decimal.NewFromFloat(entryPrice)
	exit := decimal.NewFromFloat(exitPrice)

	invested := qty.Mul(entry)
	proceeds := qty.Mul(exit)
	profit := proceeds.Sub(invested)
	if side == contracts.SideShort {
		profit = profit.Neg()
	}

	ret := decimal.Zero
	if !invested.IsZero() {
		ret = profit.Div(invested).Mul(decimal.NewFromInt(100))
	}

	return contracts.Trade{
		Side:       side,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Shares:     shares,
		Invested:   invested.InexactFloat64(),
		Proceeds:   proceeds.InexactFloat64(),
		Profit:     profit.InexactFloat64(),
		ReturnPct:  ret.InexactFloat64(),
	}
}

func (e *Engine) companyName(ctx context.Context, code string) string {
	if e.listed == nil {
		return ""
	}
	e.namesMu.Lock()
	name, ok := e.names[code]
	e.namesMu.Unlock()
	if ok {
		return name
	}

	info, err := e.listed.ListedInfo(ctx, code)
	if err == nil && info != nil {
		name = info.CompanyName
	}
	e.namesMu.Lock()
	e.names[code] = name
	e.namesMu.Unlock()
	return name
}

func validateRun(from, to time.Time, s Strategy) error {
	if from.After(to) {
		return contracts.NewConfigurationError("from", "%s is after %s",
			from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	}
	return s.Validate()
}

func calendarDays(from, to time.Time) []time.Time {
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func sortTrades(trades []contracts.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].SignalDate.Equal(trades[j].SignalDate) {
			return trades[i].SignalDate.Before(trades[j].SignalDate)
		}
		return trades[i].Code < trades[j].Code
	})
}
