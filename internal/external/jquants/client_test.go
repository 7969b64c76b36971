package jquants

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/httputil"
	"github.com/wonny/kabu/pkg/logger"
)

// fakeAPI serves the auth endpoints plus whatever handlers a test registers
type fakeAPI struct {
	mux          *http.ServeMux
	server       *httptest.Server
	logins       int32
	refreshes    int32
	validIDToken atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{mux: http.NewServeMux()}
	f.validIDToken.Store("id-1")
	f.mux.HandleFunc("/token/auth_user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.logins, 1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["mailaddress"] != "me@example.com" || body["password"] != "pw" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{"refreshToken": "refresh-1"})
	})
	f.mux.HandleFunc("/token/auth_refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.refreshes, 1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refreshToken"])
		writeJSON(w, map[string]string{"idToken": f.token()})
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) token() string {
	return f.validIDToken.Load().(string)
}

func (f *fakeAPI) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+f.token() {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeAPI) client(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{JQuants: config.JQuantsConfig{
		BaseURL:     f.server.URL,
		MailAddress: "me@example.com",
		Password:    "pw",
	}}
	h := httputil.New(cfg, logger.NewNop()).WithRetry(1, time.Millisecond)
	return NewClient(cfg, h, logger.NewNop())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestClient_AuthenticateWithMailAndPassword(t *testing.T) {
	f := newFakeAPI(t)
	c := f.client(t)

	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, "id-1", c.idToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logins))

	// a known refresh token skips the login
	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logins))
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.refreshes))
}

func TestClient_AuthenticateRequiresCredentials(t *testing.T) {
	cfg := &config.Config{JQuants: config.JQuantsConfig{BaseURL: "http://127.0.0.1:1"}}
	c := NewClient(cfg, httputil.New(cfg, logger.NewNop()).DisableRetry(), logger.NewNop())

	err := c.Authenticate(context.Background())
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestClient_DailyQuotesFollowsPagination(t *testing.T) {
	f := newFakeAPI(t)
	var calls int32
	f.mux.HandleFunc(quotesPath, func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "2024-01-05", r.URL.Query().Get("date"))
		switch r.URL.Query().Get("pagination_key") {
		case "":
			writeJSON(w, map[string]interface{}{
				"daily_quotes": []map[string]interface{}{
					{"Code": "72030", "Date": "2024-01-05", "Close": 2500.0, "AdjustmentClose": 2500.0, "AdjustmentFactor": 1.0, "Volume": 100.0},
				},
				"pagination_key": "p2",
			})
		case "p2":
			writeJSON(w, map[string]interface{}{
				"daily_quotes": []map[string]interface{}{
					{"Code": "67580", "Date": "2024-01-05", "Close": nil, "AdjustmentClose": "13000", "AdjustmentFactor": 0.5},
					{"Code": "", "Date": "2024-01-05"},
				},
				// repeated key ends the loop
				"pagination_key": "p2",
			})
		default:
			t.Errorf("unexpected key %q", r.URL.Query().Get("pagination_key"))
		}
	})

	bars, err := f.client(t).DailyQuotesByDate(context.Background(), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, "72030", bars[0].Code)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 2500.0, bars[0].AdjClose)
	assert.Equal(t, 0.0, bars[1].Close)
	assert.Equal(t, 13000.0, bars[1].AdjClose)

	assert.Equal(t, []string{"67580"}, SplitCodes(bars))
}

func TestClient_EmptyPageStopsEvenWithKey(t *testing.T) {
	f := newFakeAPI(t)
	var calls int32
	f.mux.HandleFunc(quotesPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]interface{}{"daily_quotes": []interface{}{}, "pagination_key": "again"})
	})

	bars, err := f.client(t).DailyQuotesByCode(context.Background(), "72030")
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ReauthenticatesOnUnauthorized(t *testing.T) {
	f := newFakeAPI(t)
	f.mux.HandleFunc(listedPath, func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeJSON(w, map[string]interface{}{"info": []map[string]string{
			{"Code": "72030", "Date": "2024-01-05", "CompanyName": "トヨタ自動車", "CompanyNameEnglish": "TOYOTA MOTOR",
				"Sector33CodeName": "輸送用機器", "MarketCode": "0111", "MarketCodeName": "プライム"},
		}})
	})

	c := f.client(t)
	require.NoError(t, c.Authenticate(context.Background()))
	f.validIDToken.Store("id-2")

	rows, err := c.ListedInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TOYOTA MOTOR", rows[0].CompanyNameEnglish)
	assert.Equal(t, "輸送用機器", rows[0].Sector33Name)
	assert.Equal(t, "0111", rows[0].MarketCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.refreshes))
}

func TestClient_StatementsDecodeStringsAndBlanks(t *testing.T) {
	f := newFakeAPI(t)
	f.mux.HandleFunc(statementsPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "72030", r.URL.Query().Get("code"))
		writeJSON(w, map[string]interface{}{"statements": []map[string]string{
			{
				"DisclosedDate": "2024-02-06", "DisclosedTime": "13:55:00", "LocalCode": "72030",
				"DisclosureNumber": "20240206500000", "TypeOfCurrentPeriod": "3Q",
				"EarningsPerShare": "279.32", "NetSales": "", "ForecastEarningsPerShare": "330.00",
				"NumberOfIssuedAndOutstandingSharesAtTheEndOfFiscalYearIncludingTreasuryStock": "16314987460",
				"MaterialChangesInSubsidiaries": "false", "ChangesInAccountingEstimates": "true",
			},
			{"DisclosedDate": "2024-02-06", "LocalCode": "72030"},
		}})
	})

	recs, err := f.client(t).StatementsByCode(context.Background(), "72030")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "20240206500000", rec.DisclosureNumber)
	assert.Equal(t, time.Date(2024, 2, 6, 13, 55, 0, 0, time.UTC), rec.DisclosedAt())
	require.NotNil(t, rec.EarningsPerShare)
	assert.InDelta(t, 279.32, *rec.EarningsPerShare, 1e-9)
	assert.Nil(t, rec.NetSales)
	assert.Equal(t, 16314987460.0, *rec.IssuedShares)
	assert.False(t, rec.MaterialChangesInSubsidiaries)
	assert.True(t, rec.ChangesInAccountingEstimates)
	assert.True(t, rec.HasNoiseFlag())
}

func TestClient_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	f := newFakeAPI(t)
	f.mux.HandleFunc(statementsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := f.client(t).StatementsByDate(context.Background(), time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
}

func TestClient_EmptyListingIsAnError(t *testing.T) {
	f := newFakeAPI(t)
	f.mux.HandleFunc(listedPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"info": []interface{}{}})
	})

	_, err := f.client(t).ListedInfo(context.Background())
	assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{`12.5`, contracts.Float(12.5)},
		{`"12.5"`, contracts.Float(12.5)},
		{`""`, nil},
		{`null`, nil},
		{`"-"`, nil},
		{`"n/a"`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n number
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			assert.Equal(t, tt.want, n.Ptr())
		})
	}
}
