package report

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/kabu/internal/contracts"
)

// TradeRecord is the Parquet schema for exported trades
type TradeRecord struct {
	Code        string  `parquet:"code"`
	CompanyName string  `parquet:"company_name"`
	Side        string  `parquet:"side"`
	Strategy    string  `parquet:"strategy"`
	SignalDate  int32   `parquet:"signal_date,date"`
	EntryDate   int32   `parquet:"entry_date,date"`
	EntryPrice  float64 `parquet:"entry_price"`
	ExitDate    int32   `parquet:"exit_date,date"`
	ExitPrice   float64 `parquet:"exit_price"`
	ExitReason  string  `parquet:"exit_reason"`
	Shares      int64   `parquet:"shares"`
	Invested    float64 `parquet:"invested"`
	Proceeds    float64 `parquet:"proceeds"`
	Profit      float64 `parquet:"profit"`
	ReturnPct   float64 `parquet:"return_pct"`
	HoldingDays int32   `parquet:"holding_days"`
}

const secondsPerDay = 24 * 60 * 60

// epochDay is the parquet DATE encoding: days since 1970-01-01
func epochDay(t time.Time) int32 {
	return int32(t.Unix() / secondsPerDay)
}

// NewTradeRecords converts trades to their Parquet rows
func NewTradeRecords(trades []contracts.Trade) []TradeRecord {
	out := make([]TradeRecord, 0, len(trades))
	for _, t := range trades {
		out = append(out, TradeRecord{
			Code:        t.Code,
			CompanyName: t.CompanyName,
			Side:        string(t.Side),
			Strategy:    t.Strategy,
			SignalDate:  epochDay(t.SignalDate),
			EntryDate:   epochDay(t.EntryDate),
			EntryPrice:  t.EntryPrice,
			ExitDate:    epochDay(t.ExitDate),
			ExitPrice:   t.ExitPrice,
			ExitReason:  string(t.ExitReason),
			Shares:      t.Shares,
			Invested:    t.Invested,
			Proceeds:    t.Proceeds,
			Profit:      t.Profit,
			ReturnPct:   t.ReturnPct,
			HoldingDays: int32(t.HoldingDays),
		})
	}
	return out
}

// writeParquet writes trades only; an empty result is a valid file with zero rows
func writeParquet(w io.Writer, trades []contracts.Trade) error {
	pw := parquet.NewGenericWriter[TradeRecord](w)
	if _, err := pw.Write(NewTradeRecords(trades)); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
