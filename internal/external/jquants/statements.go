package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/kabu/internal/contracts"
)

const statementsPath = "/fins/statements"

// StatementsByCode returns every disclosure for one code
func (c *Client) StatementsByCode(ctx context.Context, code string) ([]contracts.StatementRecord, error) {
	return c.statements(ctx, url.Values{"code": {code}})
}

// StatementsByDate returns the disclosures published on date
func (c *Client) StatementsByDate(ctx context.Context, date time.Time) ([]contracts.StatementRecord, error) {
	return c.statements(ctx, url.Values{"date": {date.Format(contracts.DateLayout)}})
}

func (c *Client) statements(ctx context.Context, params url.Values) ([]contracts.StatementRecord, error) {
	raw, err := c.fetchAll(ctx, statementsPath, "statements", params)
	if err != nil {
		return nil, err
	}

	recs := make([]contracts.StatementRecord, 0, len(raw))
	for _, r := range raw {
		var row statementRow
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, fmt.Errorf("failed to decode statement: %w", err)
		}
		rec, ok := row.toRecord()
		if !ok {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r statementRow) toRecord() (contracts.StatementRecord, bool) {
	if r.DisclosureNumber == "" || r.LocalCode == "" {
		return contracts.StatementRecord{}, false
	}
	d, err := contracts.ParseDate(r.DisclosedDate)
	if err != nil {
		return contracts.StatementRecord{}, false
	}
	return contracts.StatementRecord{
		DisclosureNumber:           r.DisclosureNumber,
		DisclosedDate:              d,
		DisclosedTime:              r.DisclosedTime,
		LocalCode:                  r.LocalCode,
		TypeOfDocument:             r.TypeOfDocument,
		TypeOfCurrentPeriod:        r.TypeOfCurrentPeriod,
		CurrentPeriodStartDate:     r.CurrentPeriodStartDate,
		CurrentPeriodEndDate:       r.CurrentPeriodEndDate,
		CurrentFiscalYearStartDate: r.CurrentFiscalYearStartDate,
		CurrentFiscalYearEndDate:   r.CurrentFiscalYearEndDate,

		NetSales:                         r.NetSales.Ptr(),
		OperatingProfit:                  r.OperatingProfit.Ptr(),
		OrdinaryProfit:                   r.OrdinaryProfit.Ptr(),
		Profit:                           r.Profit.Ptr(),
		EarningsPerShare:                 r.EarningsPerShare.Ptr(),
		DilutedEarningsPerShare:          r.DilutedEarningsPerShare.Ptr(),
		TotalAssets:                      r.TotalAssets.Ptr(),
		Equity:                           r.Equity.Ptr(),
		EquityToAssetRatio:               r.EquityToAssetRatio.Ptr(),
		BookValuePerShare:                r.BookValuePerShare.Ptr(),
		CashFlowsFromOperatingActivities: r.CashFlowsFromOperatingActivities.Ptr(),
		CashFlowsFromInvestingActivities: r.CashFlowsFromInvestingActivities.Ptr(),
		CashFlowsFromFinancingActivities: r.CashFlowsFromFinancingActivities.Ptr(),
		CashAndEquivalents:               r.CashAndEquivalents.Ptr(),
		ResultDividendPerShareAnnual:     r.ResultDividendPerShareAnnual.Ptr(),
		ForecastDividendPerShareAnnual:   r.ForecastDividendPerShareAnnual.Ptr(),
		ForecastNetSales:                 r.ForecastNetSales.Ptr(),
		ForecastOperatingProfit:          r.ForecastOperatingProfit.Ptr(),
		ForecastOrdinaryProfit:           r.ForecastOrdinaryProfit.Ptr(),
		ForecastProfit:                   r.ForecastProfit.Ptr(),
		ForecastEarningsPerShare:         r.ForecastEarningsPerShare.Ptr(),
		NextYearForecastEarningsPerShare: r.NextYearForecastEarningsPerShare.Ptr(),
		IssuedShares:                     r.IssuedShares.Ptr(),
		TreasuryShares:                   r.TreasuryShares.Ptr(),
		AverageNumberOfShares:            r.AverageNumberOfShares.Ptr(),

		MaterialChangesInSubsidiaries: bool(r.MaterialChangesInSubsidiaries),
		ChangesOtherThanAccountingStd: bool(r.ChangesOtherThanOnesBasedOnRevisionsOfAccountingStandard),
		ChangesInAccountingEstimates:  bool(r.ChangesInAccountingEstimates),
		ChangesBasedOnAccountingStd:   bool(r.ChangesBasedOnRevisionsOfAccountingStandard),
		RetrospectiveRestatement:      bool(r.RetrospectiveRestatement),
	}, true
}
