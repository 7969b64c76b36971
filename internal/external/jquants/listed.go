package jquants

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/kabu/internal/contracts"
)

const listedPath = "/listed/info"

// ListedInfo returns today's issue master. An empty listing is an upstream failure.
func (c *Client) ListedInfo(ctx context.Context) ([]contracts.ListedInfo, error) {
	raw, err := c.fetchAll(ctx, listedPath, "info", nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s returned no rows", contracts.ErrUpstreamUnavailable, listedPath)
	}

	rows := make([]contracts.ListedInfo, 0, len(raw))
	for _, r := range raw {
		var row listedRow
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, fmt.Errorf("failed to decode listed info: %w", err)
		}
		if row.Code == "" {
			continue
		}
		d, _ := contracts.ParseDate(row.Date)
		rows = append(rows, contracts.ListedInfo{
			Code:               row.Code,
			Date:               d,
			CompanyName:        row.CompanyName,
			CompanyNameEnglish: row.CompanyNameEnglish,
			Sector17Code:       row.Sector17Code,
			Sector17Name:       row.Sector17CodeName,
			Sector33Code:       row.Sector33Code,
			Sector33Name:       row.Sector33CodeName,
			ScaleCategory:      row.ScaleCategory,
			MarketCode:         row.MarketCode,
			MarketName:         row.MarketCodeName,
		})
	}
	return rows, nil
}
