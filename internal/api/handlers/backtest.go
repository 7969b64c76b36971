package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/kabu/internal/backtest"
	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/strategyconfig"
	"github.com/wonny/kabu/pkg/logger"
)

// BacktestHandler runs configured strategies against the store
// ⭐ SSOT: backtest API handlers live in this struct only
type BacktestHandler struct {
	store  contracts.Store
	config *strategyconfig.Config
	engine *backtest.Engine
	logger *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(store contracts.Store, cfg *strategyconfig.Config, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		store:  store,
		config: cfg,
		engine: backtest.NewEngine(store, store, log),
		logger: log,
	}
}

// BacktestResponse is the body of GET /api/backtest
type BacktestResponse struct {
	RunID    string                               `json:"run_id"`
	Strategy string                               `json:"strategy"`
	From     string                               `json:"from"`
	To       string                               `json:"to"`
	Summary  contracts.Summary                    `json:"summary"`
	BySide   map[contracts.Side]contracts.Summary `json:"by_side"`
	Risk     backtest.Risk                        `json:"risk"`
	Trades   []contracts.Trade                    `json:"trades"`
	Skips    []contracts.Skip                     `json:"skips"`
	Duration time.Duration                        `json:"duration_ns"`
}

// request resolves strategy and dates shared by the plain and streaming endpoints
func (h *BacktestHandler) request(r *http.Request) (backtest.Strategy, time.Time, time.Time, error) {
	name := r.URL.Query().Get("strategy")
	if name == "" {
		return backtest.Strategy{}, time.Time{}, time.Time{}, contracts.NewConfigurationError("strategy", "strategy is required")
	}
	from, to, err := dateRange(r)
	if err != nil {
		return backtest.Strategy{}, time.Time{}, time.Time{}, err
	}
	s, err := backtest.Build(h.config, name, h.store, h.store)
	if err != nil {
		return backtest.Strategy{}, time.Time{}, time.Time{}, err
	}
	return s, from, to, nil
}

// Run simulates a strategy over a date range
// GET /api/backtest?strategy=technical&from=2024-01-01&to=2024-03-31 (or date=2024-01-05)
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	s, from, to, err := h.request(r)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	result, err := h.engine.RunRange(r.Context(), from, to, s)
	if err != nil {
		h.logger.WithError(err).WithField("strategy", s.Name).Error("Backtest failed")
		respondError(w, errorStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, BacktestResponse{
		RunID:    result.RunID,
		Strategy: result.Strategy,
		From:     result.From.Format(contracts.DateLayout),
		To:       result.To.Format(contracts.DateLayout),
		Summary:  backtest.Summarize(result.Trades),
		BySide:   backtest.SummarizeBySide(result.Trades),
		Risk:     backtest.AnalyzeRisk(result.Trades, backtest.DefaultConfidence),
		Trades:   result.Trades,
		Skips:    result.Skips,
		Duration: result.Duration,
	})
}

// Strategies lists the configured strategy specs
// GET /api/strategies
func (h *BacktestHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.config.Strategies)
}
