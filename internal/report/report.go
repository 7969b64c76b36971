// Package report renders backtest trades and their summary.
// Rendering is strictly downstream of the engine: nothing here feeds back into it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/wonny/kabu/internal/contracts"
)

// Format selects an output encoding
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// NoTrades is what every format reports for an empty result
const NoTrades = "no trades"

// ParseFormat accepts a format name case-insensitively
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatCSV, FormatParquet:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", contracts.NewConfigurationError("format", "unknown report format %q (text, json, csv, parquet)", s)
	}
}

// Write renders trades and summary to w
// ⭐ SSOT: every CLI and API report goes through here
func Write(w io.Writer, format Format, trades []contracts.Trade, summary contracts.Summary) error {
	switch format {
	case FormatText, "":
		return writeText(w, trades, summary)
	case FormatJSON:
		return writeJSON(w, trades, summary)
	case FormatCSV:
		return writeCSV(w, trades)
	case FormatParquet:
		return writeParquet(w, trades)
	default:
		return contracts.NewConfigurationError("format", "unknown report format %q", format)
	}
}

// Document is the JSON shape of a report
type Document struct {
	Status  string            `json:"status"`
	Summary contracts.Summary `json:"summary"`
	Trades  []contracts.Trade `json:"trades"`
}

// NewDocument builds the JSON document; an empty result carries Status "no trades"
func NewDocument(trades []contracts.Trade, summary contracts.Summary) Document {
	doc := Document{Status: "ok", Summary: summary, Trades: trades}
	if len(trades) == 0 {
		doc.Status = NoTrades
		doc.Trades = []contracts.Trade{}
	}
	return doc
}

func writeJSON(w io.Writer, trades []contracts.Trade, summary contracts.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(trades, summary)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
