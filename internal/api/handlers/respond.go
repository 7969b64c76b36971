package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/kabu/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorStatus maps caller mistakes to 400 and everything else to 500
func errorStatus(err error) int {
	if contracts.IsConfigurationError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// dateParam parses a YYYY-MM-DD (or YYYYMMDD) query parameter; def is used when it is absent
func dateParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	d, err := contracts.ParseDate(v)
	if err != nil {
		return time.Time{}, contracts.NewConfigurationError(name, "invalid date %q (expected YYYY-MM-DD)", v)
	}
	return d, nil
}

// dateRange reads either date= or from=/to=. A lone from or to covers one day.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	day, err := dateParam(r, "date", time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !day.IsZero() {
		return day, day, nil
	}

	from, err := dateParam(r, "from", time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := dateParam(r, "to", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.IsZero() {
		from = to
	}
	if from.IsZero() {
		return time.Time{}, time.Time{}, contracts.NewConfigurationError("date", "date or from/to is required")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, contracts.NewConfigurationError("from",
			"%s is after %s", from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	}
	return from, to, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, contracts.NewConfigurationError(name, "not an integer: %q", v)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
