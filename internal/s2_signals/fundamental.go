package s2_signals

import (
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
)

// StatementFeatures are the derived ratios for one disclosure
type StatementFeatures struct {
	Record        contracts.StatementRecord
	DisclosedAt   time.Time
	SalesQoQ      *float64
	OpQoQ         *float64
	OpMargin      *float64
	OpMarginDelta *float64
	Leverage      *float64
	FEPSRevision  *float64
	Turnaround    bool
	CFQuality     *float64
	ETADelta      *float64
	TreasuryDelta *float64
	EPSYoYFY      *float64
	EPSYoYQ       *float64
}

// Signal converts the features into a storable row
func (f *StatementFeatures) Signal(createdAt time.Time) contracts.FundamentalSignal {
	return contracts.FundamentalSignal{
		LocalCode:           f.Record.LocalCode,
		DisclosedAt:         f.DisclosedAt,
		TypeOfCurrentPeriod: f.Record.TypeOfCurrentPeriod,
		EPSYoYFY:            f.EPSYoYFY,
		EPSYoYQ:             f.EPSYoYQ,
		OpMarginDelta:       f.OpMarginDelta,
		FEPSRevision:        f.FEPSRevision,
		CFQuality:           f.CFQuality,
		ETADelta:            f.ETADelta,
		Leverage:            f.Leverage,
		Turnaround:          f.Turnaround,
		TreasuryDelta:       f.TreasuryDelta,
		CreatedAt:           createdAt,
	}
}

var quarterOf = map[string]int{"1Q": 1, "2Q": 2, "3Q": 3, "4Q": 4}

// ComputeFeatures derives per-disclosure ratios for one code's history.
// records must be ascending by disclosure time; "previous" always means the
// immediately preceding disclosure, except for the YoY ratios which compare
// against the previous disclosure of the same period type.
func ComputeFeatures(records []contracts.StatementRecord, cfg strategyconfig.Fundamental) []StatementFeatures {
	out := make([]StatementFeatures, len(records))
	margins := make([]*float64, len(records))

	var lastFY *contracts.StatementRecord
	lastQ := make(map[int]*contracts.StatementRecord)

	for i := range records {
		r := &records[i]
		f := StatementFeatures{
			Record:      *r,
			DisclosedAt: r.DisclosedAt(),
		}

		f.OpMargin = ratio(r.OperatingProfit, r.NetSales)
		margins[i] = f.OpMargin
		f.OpMarginDelta = marginDelta(margins, i, cfg.WindowQ)
		f.CFQuality = ratio(r.CashFlowsFromOperatingActivities, r.OperatingProfit)

		if i > 0 {
			prev := &records[i-1]
			f.SalesQoQ = pctChange(r.NetSales, prev.NetSales)
			f.OpQoQ = pctChange(r.OperatingProfit, prev.OperatingProfit)
			f.Leverage = ratio(f.OpQoQ, f.SalesQoQ)
			f.FEPSRevision = pctChange(r.ForecastEarningsPerShare, prev.ForecastEarningsPerShare)
			f.Turnaround = prev.Profit != nil && r.Profit != nil && *prev.Profit < 0 && *r.Profit > 0
			f.ETADelta = delta(r.EquityToAssetRatio, prev.EquityToAssetRatio)
			f.TreasuryDelta = delta(r.TreasuryShares, prev.TreasuryShares)
		}

		switch period := r.TypeOfCurrentPeriod; {
		case period == "FY":
			if lastFY != nil {
				f.EPSYoYFY = pctChange(r.EarningsPerShare, lastFY.EarningsPerShare)
			}
			lastFY = r
		case quarterOf[period] > 0:
			q := quarterOf[period]
			if p, ok := lastQ[q]; ok {
				f.EPSYoYQ = pctChange(r.EarningsPerShare, p.EarningsPerShare)
			}
			lastQ[q] = r
		}

		out[i] = f
	}
	return out
}

// marginDelta is margin[i] minus the mean of the trailing window (inclusive);
// nil unless every value in the window is present.
func marginDelta(margins []*float64, i, window int) *float64 {
	if window <= 0 || i+1 < window || margins[i] == nil {
		return nil
	}
	var sum float64
	for k := i - window + 1; k <= i; k++ {
		if margins[k] == nil {
			return nil
		}
		sum += *margins[k]
	}
	v := *margins[i] - sum/float64(window)
	return &v
}

func pctChange(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	v := (*cur - *prev) / *prev
	return &v
}

func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	v := *num / *den
	return &v
}

func delta(cur, prev *float64) *float64 {
	if cur == nil || prev == nil {
		return nil
	}
	v := *cur - *prev
	return &v
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
