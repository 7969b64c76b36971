package s2_signals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// FirstDetector sets the first-occurrence flags on freshly computed signals.
// A day is a long "first" when its count reaches SignalCountMin, no day in the
// preceding FirstLookbackDays calendar days reached it. Overheated days are still firsts;
// queries drop them with ExcludeStretched. The short side mirrors this with ShortCount and
// ShortSignalCountMin, and an oversold day is never a short first.
type FirstDetector struct {
	cfg    strategyconfig.Technical
	store  contracts.SignalStore
	logger *logger.Logger
}

// NewFirstDetector creates a detector reading prior rows from store
func NewFirstDetector(cfg strategyconfig.Technical, store contracts.SignalStore, log *logger.Logger) *FirstDetector {
	return &FirstDetector{
		cfg:    cfg,
		store:  store,
		logger: log,
	}
}

type counts struct {
	long  int
	short int
}

// Apply marks First and ShortFirst in place. Signals must belong to one code.
// History comes from the store; rows in the batch take precedence over stored rows for the same date.
func (d *FirstDetector) Apply(ctx context.Context, code string, signals []contracts.TechnicalSignal) error {
	if len(signals) == 0 {
		return nil
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].SignalDate.Before(signals[j].SignalDate)
	})

	lookback := time.Duration(d.cfg.FirstLookbackDays) * 24 * time.Hour
	from := signals[0].SignalDate.Add(-lookback)
	to := signals[len(signals)-1].SignalDate

	history := make(map[time.Time]counts)
	if d.store != nil {
		rows, err := d.store.QuerySignals(ctx, contracts.SignalQuery{
			Kind: contracts.KindTechnical,
			Code: code,
			From: from,
			To:   to,
		})
		if err != nil {
			return fmt.Errorf("failed to load signal history for %s: %w", code, err)
		}
		for _, r := range rows {
			if r.Technical == nil {
				continue
			}
			history[contracts.TruncateDay(r.Date)] = counts{long: r.Technical.SignalCount, short: r.Technical.ShortCount}
		}
	}
	for _, s := range signals {
		history[contracts.TruncateDay(s.SignalDate)] = counts{long: s.SignalCount, short: s.ShortCount}
	}

	dates := make([]time.Time, 0, len(history))
	for day := range history {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	firstLong, firstShort := 0, 0
	for i := range signals {
		s := &signals[i]
		day := contracts.TruncateDay(s.SignalDate)
		windowStart := day.Add(-lookback)

		priorLong, priorShort := false, false
		lo := sort.Search(len(dates), func(k int) bool { return !dates[k].Before(windowStart) })
		for k := lo; k < len(dates) && dates[k].Before(day); k++ {
			c := history[dates[k]]
			if c.long >= d.cfg.SignalCountMin {
				priorLong = true
			}
			if c.short >= d.cfg.ShortSignalCountMin {
				priorShort = true
			}
		}

		s.First = s.SignalCount >= d.cfg.SignalCountMin && !priorLong
		s.ShortFirst = s.ShortCount >= d.cfg.ShortSignalCountMin && !priorShort && !s.Oversold
		if s.First {
			firstLong++
		}
		if s.ShortFirst {
			firstShort++
		}
	}

	d.logger.WithFields(map[string]interface{}{
		"code":        code,
		"rows":        len(signals),
		"history":     len(history),
		"first_long":  firstLong,
		"first_short": firstShort,
	}).Debug("Applied first-occurrence detection")

	return nil
}
