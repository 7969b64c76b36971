package contracts

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire format for trading dates
const DateLayout = "2006-01-02"

// PriceBar is one symbol's daily quote
// ⭐ SSOT: adjusted fields are the only basis for signals and P&L; raw OHLC is informational
type PriceBar struct {
	Code          string    `json:"code"`
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	TurnoverValue float64   `json:"turnover_value"`
	AdjFactor     float64   `json:"adj_factor"`
	AdjOpen       float64   `json:"adj_open"`
	AdjHigh       float64   `json:"adj_high"`
	AdjLow        float64   `json:"adj_low"`
	AdjClose      float64   `json:"adj_close"`
	AdjVolume     float64   `json:"adj_volume"`
}

// ListedInfo is the issue master row for one code
type ListedInfo struct {
	Code               string    `json:"code"`
	Date               time.Time `json:"date"`
	CompanyName        string    `json:"company_name"`
	CompanyNameEnglish string    `json:"company_name_en"`
	Sector17Code       string    `json:"sector17_code"`
	Sector17Name       string    `json:"sector17_name"`
	Sector33Code       string    `json:"sector33_code"`
	Sector33Name       string    `json:"sector33_name"`
	ScaleCategory      string    `json:"scale_category"`
	MarketCode         string    `json:"market_code"`
	MarketName         string    `json:"market_name"`
	Deleted            bool      `json:"deleted"` // not present in the latest listing
}

// MarketCodeOther is the listing segment for funds and other non-equity issues
const MarketCodeOther = "0109"

// StatementRecord is one financial-statement disclosure, keyed by DisclosureNumber.
// Numeric fields are nil when the filing leaves them blank.
type StatementRecord struct {
	DisclosureNumber           string    `json:"disclosure_number"`
	DisclosedDate              time.Time `json:"disclosed_date"`
	DisclosedTime              string    `json:"disclosed_time"` // HH:MM:SS
	LocalCode                  string    `json:"local_code"`
	TypeOfDocument             string    `json:"type_of_document"`
	TypeOfCurrentPeriod        string    `json:"type_of_current_period"` // 1Q, 2Q, 3Q, 4Q, FY
	CurrentPeriodStartDate     string    `json:"current_period_start_date"`
	CurrentPeriodEndDate       string    `json:"current_period_end_date"`
	CurrentFiscalYearStartDate string    `json:"current_fiscal_year_start_date"`
	CurrentFiscalYearEndDate   string    `json:"current_fiscal_year_end_date"`

	NetSales                         *float64 `json:"net_sales"`
	OperatingProfit                  *float64 `json:"operating_profit"`
	OrdinaryProfit                   *float64 `json:"ordinary_profit"`
	Profit                           *float64 `json:"profit"`
	EarningsPerShare                 *float64 `json:"earnings_per_share"`
	DilutedEarningsPerShare          *float64 `json:"diluted_earnings_per_share"`
	TotalAssets                      *float64 `json:"total_assets"`
	Equity                           *float64 `json:"equity"`
	EquityToAssetRatio               *float64 `json:"equity_to_asset_ratio"`
	BookValuePerShare                *float64 `json:"book_value_per_share"`
	CashFlowsFromOperatingActivities *float64 `json:"cash_flows_from_operating_activities"`
	CashFlowsFromInvestingActivities *float64 `json:"cash_flows_from_investing_activities"`
	CashFlowsFromFinancingActivities *float64 `json:"cash_flows_from_financing_activities"`
	CashAndEquivalents               *float64 `json:"cash_and_equivalents"`
	ResultDividendPerShareAnnual     *float64 `json:"result_dividend_per_share_annual"`
	ForecastDividendPerShareAnnual   *float64 `json:"forecast_dividend_per_share_annual"`
	ForecastNetSales                 *float64 `json:"forecast_net_sales"`
	ForecastOperatingProfit          *float64 `json:"forecast_operating_profit"`
	ForecastOrdinaryProfit           *float64 `json:"forecast_ordinary_profit"`
	ForecastProfit                   *float64 `json:"forecast_profit"`
	ForecastEarningsPerShare         *float64 `json:"forecast_earnings_per_share"`
	NextYearForecastEarningsPerShare *float64 `json:"next_year_forecast_earnings_per_share"`
	IssuedShares                     *float64 `json:"issued_shares"` // including treasury stock
	TreasuryShares                   *float64 `json:"treasury_shares"`
	AverageNumberOfShares            *float64 `json:"average_number_of_shares"`

	MaterialChangesInSubsidiaries bool `json:"material_changes_in_subsidiaries"`
	ChangesOtherThanAccountingStd bool `json:"changes_other_than_accounting_standard"`
	ChangesInAccountingEstimates  bool `json:"changes_in_accounting_estimates"`
	ChangesBasedOnAccountingStd   bool `json:"changes_based_on_accounting_standard"`
	RetrospectiveRestatement      bool `json:"retrospective_restatement"`
}

// DisclosedAt combines the disclosure date and time. A malformed time falls back to midnight.
func (s *StatementRecord) DisclosedAt() time.Time {
	d := s.DisclosedDate
	t := strings.TrimSpace(s.DisclosedTime)
	if t == "" {
		return d
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(t, "%d:%d:%d", &h, &m, &sec); err != nil {
		if _, err := fmt.Sscanf(t, "%d:%d", &h, &m); err != nil {
			return d
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, sec, 0, d.Location())
}

// HasNoiseFlag reports whether any disclosure flag that makes period comparisons unreliable is set
func (s *StatementRecord) HasNoiseFlag() bool {
	return s.MaterialChangesInSubsidiaries ||
		s.ChangesOtherThanAccountingStd ||
		s.ChangesInAccountingEstimates
}

// TableSummary is a row count and date span for one stored table
type TableSummary struct {
	Table   string `json:"table"`
	Rows    int64  `json:"rows"`
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

// Widen extends the date span to include d
func (t *TableSummary) Widen(d time.Time) {
	v := d.Format(DateLayout)
	if t.MinDate == "" || v < t.MinDate {
		t.MinDate = v
	}
	if t.MaxDate == "" || v > t.MaxDate {
		t.MaxDate = v
	}
}

// Float returns a pointer to v; used for nullable statement fields
func Float(v float64) *float64 {
	return &v
}

// TruncateDay drops the clock part, keeping the location
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDate parses a YYYY-MM-DD (or YYYYMMDD) date in UTC
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == 8 && !strings.Contains(s, "-") {
		return time.Parse("20060102", s)
	}
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse(DateLayout, s)
}
