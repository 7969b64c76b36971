package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/kabu/internal/contracts"
)

const quotesPath = "/prices/daily_quotes"

// DailyQuotesByDate returns every issue's bar for one date. Holidays return an empty slice.
func (c *Client) DailyQuotesByDate(ctx context.Context, date time.Time) ([]contracts.PriceBar, error) {
	return c.dailyQuotes(ctx, url.Values{"date": {date.Format(contracts.DateLayout)}})
}

// DailyQuotesByCode returns the full available history for one code
func (c *Client) DailyQuotesByCode(ctx context.Context, code string) ([]contracts.PriceBar, error) {
	return c.dailyQuotes(ctx, url.Values{"code": {code}})
}

func (c *Client) dailyQuotes(ctx context.Context, params url.Values) ([]contracts.PriceBar, error) {
	raw, err := c.fetchAll(ctx, quotesPath, "daily_quotes", params)
	if err != nil {
		return nil, err
	}

	bars := make([]contracts.PriceBar, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var row quoteRow
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, fmt.Errorf("failed to decode quote: %w", err)
		}
		bar, ok := row.toBar()
		if !ok {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	if skipped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"params":  params.Encode(),
			"skipped": skipped,
		}).Warn("Quotes without code or date dropped")
	}
	return bars, nil
}

// toBar maps a vendor row; blank prices (suspended days) become zero
func (r quoteRow) toBar() (contracts.PriceBar, bool) {
	if r.Code == "" {
		return contracts.PriceBar{}, false
	}
	d, err := contracts.ParseDate(r.Date)
	if err != nil {
		return contracts.PriceBar{}, false
	}
	return contracts.PriceBar{
		Code:          r.Code,
		Date:          d,
		Open:          r.Open.Or(0),
		High:          r.High.Or(0),
		Low:           r.Low.Or(0),
		Close:         r.Close.Or(0),
		Volume:        r.Volume.Or(0),
		TurnoverValue: r.TurnoverValue.Or(0),
		AdjFactor:     r.AdjustmentFactor.Or(1),
		AdjOpen:       r.AdjustmentOpen.Or(0),
		AdjHigh:       r.AdjustmentHigh.Or(0),
		AdjLow:        r.AdjustmentLow.Or(0),
		AdjClose:      r.AdjustmentClose.Or(0),
		AdjVolume:     r.AdjustmentVolume.Or(0),
	}, true
}

// SplitCodes returns codes whose adjustment factor differs from 1, in first-seen order
func SplitCodes(bars []contracts.PriceBar) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, b := range bars {
		if b.AdjFactor == 0 || b.AdjFactor == 1 || seen[b.Code] {
			continue
		}
		seen[b.Code] = true
		codes = append(codes, b.Code)
	}
	return codes
}
