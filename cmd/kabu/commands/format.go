package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/kabu/internal/s0_data/collector"
)

// Output helpers shared by every command. Reports go to stdout, progress to stderr.

var out io.Writer = os.Stdout

// PrintHeader prints a titled block with key/value lines
func PrintHeader(title string, kv ...string) {
	fmt.Fprintln(out)
	PrintDoubleSeparator()
	fmt.Fprintf(out, "  %s\n", title)
	if len(kv) > 0 {
		PrintSeparator()
		for i := 0; i+1 < len(kv); i += 2 {
			PrintKeyValue(kv[i], kv[i+1], 10)
		}
	}
	PrintDoubleSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Fprintln(out, strings.Repeat("─", 59))
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(out, strings.Repeat("═", 59))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(out, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(out, "✅ %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(out, "  %-*s : %s\n", keyWidth, key, value)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(out, "   • %s\n", item)
	}
}

// PrintFetchResults summarizes a collector run and lists failed units
func PrintFetchResults(what string, results []collector.FetchResult) {
	prices, statements := 0, 0
	var failed []string
	for _, r := range results {
		prices += r.PriceCount
		statements += r.StatementCount
		if r.Error != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Key, r.Error))
		}
	}

	PrintSeparator()
	PrintKeyValue("Units", fmt.Sprint(len(results)), 10)
	PrintKeyValue("Prices", fmt.Sprint(prices), 10)
	PrintKeyValue("Statements", fmt.Sprint(statements), 10)
	PrintKeyValue("Failed", fmt.Sprint(len(failed)), 10)
	if len(failed) > 0 {
		PrintWarning(what + " finished with failures:")
		PrintList(failed)
		return
	}
	PrintSuccess(what + " completed")
}
