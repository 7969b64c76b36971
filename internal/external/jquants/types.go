package jquants

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// number accepts JSON numbers, numeric strings, "" and null.
// Anything that does not parse is treated as blank.
type number struct {
	v *float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	n.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.v = &f
	return nil
}

// Ptr returns nil for blank values
func (n number) Ptr() *float64 {
	return n.v
}

// Or returns the value or def when blank
func (n number) Or(def float64) float64 {
	if n.v == nil {
		return def
	}
	return *n.v
}

// flag accepts true/false as JSON booleans or strings; blank is false
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	*f = flag(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// quoteRow is one element of daily_quotes
type quoteRow struct {
	Code             string `json:"Code"`
	Date             string `json:"Date"`
	Open             number `json:"Open"`
	High             number `json:"High"`
	Low              number `json:"Low"`
	Close            number `json:"Close"`
	Volume           number `json:"Volume"`
	TurnoverValue    number `json:"TurnoverValue"`
	AdjustmentFactor number `json:"AdjustmentFactor"`
	AdjustmentOpen   number `json:"AdjustmentOpen"`
	AdjustmentHigh   number `json:"AdjustmentHigh"`
	AdjustmentLow    number `json:"AdjustmentLow"`
	AdjustmentClose  number `json:"AdjustmentClose"`
	AdjustmentVolume number `json:"AdjustmentVolume"`
}

// statementRow is one element of statements
type statementRow struct {
	DisclosedDate              string `json:"DisclosedDate"`
	DisclosedTime              string `json:"DisclosedTime"`
	LocalCode                  string `json:"LocalCode"`
	DisclosureNumber           string `json:"DisclosureNumber"`
	TypeOfDocument             string `json:"TypeOfDocument"`
	TypeOfCurrentPeriod        string `json:"TypeOfCurrentPeriod"`
	CurrentPeriodStartDate     string `json:"CurrentPeriodStartDate"`
	CurrentPeriodEndDate       string `json:"CurrentPeriodEndDate"`
	CurrentFiscalYearStartDate string `json:"CurrentFiscalYearStartDate"`
	CurrentFiscalYearEndDate   string `json:"CurrentFiscalYearEndDate"`

	NetSales                         number `json:"NetSales"`
	OperatingProfit                  number `json:"OperatingProfit"`
	OrdinaryProfit                   number `json:"OrdinaryProfit"`
	Profit                           number `json:"Profit"`
	EarningsPerShare                 number `json:"EarningsPerShare"`
	DilutedEarningsPerShare          number `json:"DilutedEarningsPerShare"`
	TotalAssets                      number `json:"TotalAssets"`
	Equity                           number `json:"Equity"`
	EquityToAssetRatio               number `json:"EquityToAssetRatio"`
	BookValuePerShare                number `json:"BookValuePerShare"`
	CashFlowsFromOperatingActivities number `json:"CashFlowsFromOperatingActivities"`
	CashFlowsFromInvestingActivities number `json:"CashFlowsFromInvestingActivities"`
	CashFlowsFromFinancingActivities number `json:"CashFlowsFromFinancingActivities"`
	CashAndEquivalents               number `json:"CashAndEquivalents"`
	ResultDividendPerShareAnnual     number `json:"ResultDividendPerShareAnnual"`
	ForecastDividendPerShareAnnual   number `json:"ForecastDividendPerShareAnnual"`
	ForecastNetSales                 number `json:"ForecastNetSales"`
	ForecastOperatingProfit          number `json:"ForecastOperatingProfit"`
	ForecastOrdinaryProfit           number `json:"ForecastOrdinaryProfit"`
	ForecastProfit                   number `json:"ForecastProfit"`
	ForecastEarningsPerShare         number `json:"ForecastEarningsPerShare"`
	NextYearForecastEarningsPerShare number `json:"NextYearForecastEarningsPerShare"`
	IssuedShares                     number `json:"NumberOfIssuedAndOutstandingSharesAtTheEndOfFiscalYearIncludingTreasuryStock"`
	TreasuryShares                   number `json:"NumberOfTreasuryStockAtTheEndOfFiscalYear"`
	AverageNumberOfShares            number `json:"AverageNumberOfShares"`

	MaterialChangesInSubsidiaries                            flag `json:"MaterialChangesInSubsidiaries"`
	ChangesOtherThanOnesBasedOnRevisionsOfAccountingStandard flag `json:"ChangesOtherThanOnesBasedOnRevisionsOfAccountingStandard"`
	ChangesInAccountingEstimates                             flag `json:"ChangesInAccountingEstimates"`
	ChangesBasedOnRevisionsOfAccountingStandard              flag `json:"ChangesBasedOnRevisionsOfAccountingStandard"`
	RetrospectiveRestatement                                 flag `json:"RetrospectiveRestatement"`
}

// listedRow is one element of info
type listedRow struct {
	Code               string `json:"Code"`
	Date               string `json:"Date"`
	CompanyName        string `json:"CompanyName"`
	CompanyNameEnglish string `json:"CompanyNameEnglish"`
	Sector17Code       string `json:"Sector17Code"`
	Sector17CodeName   string `json:"Sector17CodeName"`
	Sector33Code       string `json:"Sector33Code"`
	Sector33CodeName   string `json:"Sector33CodeName"`
	ScaleCategory      string `json:"ScaleCategory"`
	MarketCode         string `json:"MarketCode"`
	MarketCodeName     string `json:"MarketCodeName"`
}
