package handlers

import (
	"net/http"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/logger"
)

// SignalHandler serves stored technical and fundamental signals
type SignalHandler struct {
	store  contracts.SignalStore
	logger *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(store contracts.SignalStore, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		store:  store,
		logger: log,
	}
}

// SignalsResponse is the body of GET /api/signals
type SignalsResponse struct {
	Kind  contracts.SignalKind  `json:"kind"`
	From  string                `json:"from"`
	To    string                `json:"to"`
	Count int                   `json:"count"`
	Rows  []contracts.SignalRow `json:"rows"`
}

// List returns signals for a date or range
// GET /api/signals?kind=technical&date=2024-01-05&min_count=3&first=true&fresh=true&side=long&code=72030
// GET /api/signals?kind=fundamental&from=2024-01-01&to=2024-01-31
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := signalQuery(r)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	rows, err := h.store.QuerySignals(r.Context(), q)
	if err != nil {
		h.logger.WithError(err).WithField("kind", string(q.Kind)).Error("Failed to query signals")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}
	if rows == nil {
		rows = []contracts.SignalRow{}
	}
	contracts.SortSignalRows(rows)

	respondJSON(w, http.StatusOK, SignalsResponse{
		Kind:  q.Kind,
		From:  q.From.Format(contracts.DateLayout),
		To:    q.To.Format(contracts.DateLayout),
		Count: len(rows),
		Rows:  rows,
	})
}

func signalQuery(r *http.Request) (contracts.SignalQuery, error) {
	from, to, err := dateRange(r)
	if err != nil {
		return contracts.SignalQuery{}, err
	}

	q := contracts.SignalQuery{
		Kind: contracts.SignalKind(r.URL.Query().Get("kind")),
		Code: r.URL.Query().Get("code"),
		From: from,
		To:   to,
	}
	switch q.Kind {
	case "":
		q.Kind = contracts.KindTechnical
	case contracts.KindTechnical, contracts.KindFundamental:
	default:
		return q, contracts.NewConfigurationError("kind", "unknown signal kind %q", q.Kind)
	}
	if q.Kind == contracts.KindFundamental {
		return q, nil
	}

	if q.MinCount, err = intParam(r, "min_count", 0); err != nil {
		return q, err
	}
	q.FirstOnly = boolParam(r, "first")
	q.ExcludeStretched = boolParam(r, "fresh")
	if side := r.URL.Query().Get("side"); side != "" {
		q.Side = contracts.Side(side)
		if !q.Side.Valid() {
			return q, contracts.NewConfigurationError("side", "unknown side %q", side)
		}
	}
	return q, nil
}
