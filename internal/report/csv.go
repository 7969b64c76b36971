package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/wonny/kabu/internal/contracts"
)

var csvHeader = []string{
	"code", "company_name", "side", "strategy", "signal_date", "entry_date", "entry_price",
	"exit_date", "exit_price", "exit_reason", "shares", "invested", "proceeds", "profit",
	"return_pct", "holding_days",
}

// writeCSV is the spreadsheet export: one header row plus one row per trade
func writeCSV(w io.Writer, trades []contracts.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.Code,
			t.CompanyName,
			string(t.Side),
			t.Strategy,
			t.SignalDate.Format(contracts.DateLayout),
			t.EntryDate.Format(contracts.DateLayout),
			ftoa(t.EntryPrice),
			t.ExitDate.Format(contracts.DateLayout),
			ftoa(t.ExitPrice),
			string(t.ExitReason),
			strconv.FormatInt(t.Shares, 10),
			ftoa(t.Invested),
			ftoa(t.Proceeds),
			ftoa(t.Profit),
			ftoa(t.ReturnPct),
			strconv.Itoa(t.HoldingDays),
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
