package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/quality"
	"github.com/wonny/kabu/pkg/logger"
)

// DataHandler handles data-related API endpoints
// ⭐ SSOT: data API handlers live in this struct only
type DataHandler struct {
	store       contracts.Store
	qualityGate *quality.QualityGate
	logger      *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(store contracts.Store, qualityGate *quality.QualityGate, log *logger.Logger) *DataHandler {
	return &DataHandler{
		store:       store,
		qualityGate: qualityGate,
		logger:      log,
	}
}

// GetSummary returns per-table row counts and date spans
// GET /api/summary
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize store")
		respondError(w, http.StatusInternalServerError, "Failed to summarize store")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetQuality runs the quality gate for a date (default: latest stored trading day)
// GET /api/data/quality?date=2024-01-05
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := dateParam(r, "date", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if date.IsZero() {
		date, err = h.latestTradingDay(r)
		if err != nil {
			h.logger.WithError(err).Error("Failed to find latest trading day")
			respondError(w, http.StatusInternalServerError, "Failed to find latest trading day")
			return
		}
		if date.IsZero() {
			respondError(w, http.StatusNotFound, "No price data")
			return
		}
	}

	snapshot, err := h.qualityGate.Check(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to check data quality")
		respondError(w, http.StatusInternalServerError, "Failed to check data quality")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// GetListed returns the listing row for one code
// GET /api/listed/{code}
func (h *DataHandler) GetListed(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	info, err := h.store.ListedInfo(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("Failed to get listed info")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve listed info")
		return
	}
	if info == nil {
		respondError(w, http.StatusNotFound, "Unknown code")
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// latestTradingDay looks back two weeks for the newest priced date
func (h *DataHandler) latestTradingDay(r *http.Request) (time.Time, error) {
	to := contracts.TruncateDay(time.Now().UTC())
	dates, err := h.store.TradingCalendar(r.Context(), to.AddDate(0, 0, -14), to)
	if err != nil {
		return time.Time{}, err
	}
	if len(dates) == 0 {
		return time.Time{}, nil
	}
	return dates[len(dates)-1], nil
}
