package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wonny/kabu/internal/contracts"
)

const rule = "═══════════════════════════════════════════════════════════"

func writeText(w io.Writer, trades []contracts.Trade, summary contracts.Summary) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, NoTrades)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tSIDE\tSIGNAL\tENTRY\tENTRY PX\tEXIT\tEXIT PX\tREASON\tSHARES\tPROFIT\tRET%\tDAYS\t")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\t%.2f\t%s\t%d\t%.0f\t%.2f\t%d\t\n",
			t.Code,
			t.Side,
			t.SignalDate.Format(contracts.DateLayout),
			t.EntryDate.Format(contracts.DateLayout),
			t.EntryPrice,
			t.ExitDate.Format(contracts.DateLayout),
			t.ExitPrice,
			t.ExitReason,
			t.Shares,
			t.Profit,
			t.ReturnPct,
			t.HoldingDays,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush trades: %w", err)
	}

	return writeSummary(w, summary)
}

func writeSummary(w io.Writer, s contracts.Summary) error {
	_, err := fmt.Fprintf(w, "%s\n  Trades       : %d\n  Total profit : %.0f\n  Win rate     : %.1f%%\n  Avg return   : %.2f%%\n  Sharpe       : %.3f\n  Max drawdown : %.0f\n%s\n",
		rule,
		s.Trades,
		s.TotalProfit,
		s.WinRate*100,
		s.AvgReturnPct,
		s.Sharpe,
		s.MaxDrawdown,
		rule,
	)
	return err
}
