// Package memory is an in-process contracts.Store used by tests and dry runs
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/kabu/internal/contracts"
)

type priceKey struct {
	code string
	date time.Time
}

type fundKey struct {
	code string
	at   time.Time
}

// Store keeps everything in maps guarded by a RWMutex
type Store struct {
	mu          sync.RWMutex
	prices      map[priceKey]contracts.PriceBar
	statements  map[string]contracts.StatementRecord // by DisclosureNumber
	listed      map[string]contracts.ListedInfo
	fundamental map[fundKey]contracts.FundamentalSignal
	technical   map[priceKey]contracts.TechnicalSignal
}

// New creates an empty store
func New() *Store {
	return &Store{
		prices:      make(map[priceKey]contracts.PriceBar),
		statements:  make(map[string]contracts.StatementRecord),
		listed:      make(map[string]contracts.ListedInfo),
		fundamental: make(map[fundKey]contracts.FundamentalSignal),
		technical:   make(map[priceKey]contracts.TechnicalSignal),
	}
}

var _ contracts.Store = (*Store)(nil)

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func inRange(d, from, to time.Time) bool {
	d = day(d)
	return !d.Before(day(from)) && !d.After(day(to))
}

// SavePrices implements contracts.PriceWriter
func (s *Store) SavePrices(_ context.Context, bars []contracts.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		b.Date = day(b.Date)
		s.prices[priceKey{b.Code, b.Date}] = b
	}
	return nil
}

// PriceHistory implements contracts.PriceStore
func (s *Store) PriceHistory(_ context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.PriceBar
	for k, b := range s.prices {
		if k.code == code && inRange(k.date, from, to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// PriceAt implements contracts.PriceStore
func (s *Store) PriceAt(_ context.Context, code string, date time.Time) (*contracts.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.prices[priceKey{code, day(date)}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// TradingCalendar implements contracts.PriceStore
func (s *Store) TradingCalendar(_ context.Context, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[time.Time]struct{})
	for k := range s.prices {
		if inRange(k.date, from, to) {
			seen[k.date] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Codes implements contracts.PriceStore
func (s *Store) Codes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range s.prices {
		seen[k.code] = struct{}{}
	}
	return sortedKeys(seen), nil
}

// SaveStatements implements contracts.StatementWriter
func (s *Store) SaveStatements(_ context.Context, records []contracts.StatementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.statements[r.DisclosureNumber] = r
	}
	return nil
}

// StatementHistory implements contracts.StatementStore
func (s *Store) StatementHistory(_ context.Context, code string) ([]contracts.StatementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.StatementRecord
	for _, r := range s.statements {
		if r.LocalCode == code {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].DisclosedAt(), out[j].DisclosedAt()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return out[i].DisclosureNumber < out[j].DisclosureNumber
	})
	return out, nil
}

// StatementCodes implements contracts.StatementStore
func (s *Store) StatementCodes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range s.statements {
		seen[r.LocalCode] = struct{}{}
	}
	return sortedKeys(seen), nil
}

// ListedInfo implements contracts.ListedStore
func (s *Store) ListedInfo(_ context.Context, code string) (*contracts.ListedInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.listed[code]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// ActiveCodes implements contracts.ListedStore
func (s *Store) ActiveCodes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for code, info := range s.listed {
		if !info.Deleted && info.MarketCode != contracts.MarketCodeOther {
			seen[code] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// SaveListedInfo implements contracts.ListedStore
func (s *Store) SaveListedInfo(_ context.Context, rows []contracts.ListedInfo) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	present := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		r.Deleted = false
		s.listed[r.Code] = r
		present[r.Code] = struct{}{}
	}
	for code, info := range s.listed {
		if _, ok := present[code]; !ok {
			info.Deleted = true
			s.listed[code] = info
		}
	}
	return nil
}

// UpsertFundamentalSignal implements contracts.SignalStore
func (s *Store) UpsertFundamentalSignal(_ context.Context, sig contracts.FundamentalSignal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := fundKey{sig.LocalCode, sig.DisclosedAt.UTC()}
	if _, ok := s.fundamental[k]; ok {
		return false, nil
	}
	s.fundamental[k] = sig
	return true, nil
}

// UpsertTechnicalSignal implements contracts.SignalStore
func (s *Store) UpsertTechnicalSignal(_ context.Context, sig contracts.TechnicalSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig.SignalDate = day(sig.SignalDate)
	s.technical[priceKey{sig.Code, sig.SignalDate}] = sig
	return nil
}

// QuerySignals implements contracts.SignalStore
func (s *Store) QuerySignals(_ context.Context, q contracts.SignalQuery) ([]contracts.SignalRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contracts.SignalRow
	switch q.Kind {
	case contracts.KindFundamental:
		for _, sig := range s.fundamental {
			if q.Code != "" && sig.LocalCode != q.Code {
				continue
			}
			if !inRange(sig.DisclosedAt, q.From, q.To) {
				continue
			}
			sig := sig
			out = append(out, contracts.SignalRow{
				Kind:        contracts.KindFundamental,
				Code:        sig.LocalCode,
				Date:        sig.DisclosedAt,
				Fundamental: &sig,
			})
		}
	default:
		for _, sig := range s.technical {
			if !inRange(sig.SignalDate, q.From, q.To) || !q.Matches(&sig) {
				continue
			}
			sig := sig
			out = append(out, contracts.SignalRow{
				Kind:      contracts.KindTechnical,
				Code:      sig.Code,
				Date:      sig.SignalDate,
				Technical: &sig,
			})
		}
	}
	contracts.SortSignalRows(out)
	return out, nil
}

// Summary implements contracts.Store
func (s *Store) Summary(_ context.Context) ([]contracts.TableSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := contracts.TableSummary{Table: "prices", Rows: int64(len(s.prices))}
	for k := range s.prices {
		prices.Widen(k.date)
	}
	stmts := contracts.TableSummary{Table: "statements", Rows: int64(len(s.statements))}
	for _, r := range s.statements {
		stmts.Widen(r.DisclosedDate)
	}
	listed := contracts.TableSummary{Table: "listed_info", Rows: int64(len(s.listed))}
	for _, r := range s.listed {
		listed.Widen(r.Date)
	}
	fund := contracts.TableSummary{Table: "fundamental_signals", Rows: int64(len(s.fundamental))}
	for k := range s.fundamental {
		fund.Widen(k.at)
	}
	tech := contracts.TableSummary{Table: "technical_indicators", Rows: int64(len(s.technical))}
	for k := range s.technical {
		tech.Widen(k.date)
	}
	return []contracts.TableSummary{prices, stmts, listed, fund, tech}, nil
}

// Close implements contracts.Store
func (s *Store) Close() error {
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
