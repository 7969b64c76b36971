package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/kabu/internal/backtest"
	"github.com/wonny/kabu/internal/contracts"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// local research tool; the API is not exposed cross-origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream message types
const (
	MessageTrade   = "trade"
	MessageSummary = "summary"
	MessageError   = "error"
)

// StreamMessage is one websocket frame of a streamed backtest.
// A stream is zero or more trades followed by exactly one summary or error.
// Skipped is set on the summary message.
type StreamMessage struct {
	Type    string             `json:"type"`
	Trade   *contracts.Trade   `json:"trade,omitempty"`
	Summary *contracts.Summary `json:"summary,omitempty"`
	Skipped int                `json:"skipped"`
	Error   string             `json:"error,omitempty"`
}

// Stream runs a range backtest and pushes each trade as soon as its signal day is simulated
// GET /api/backtest/stream?strategy=technical&from=2024-01-01&to=2024-03-31 (websocket)
func (h *BacktestHandler) Stream(w http.ResponseWriter, r *http.Request) {
	// validate before upgrading so bad requests still get a plain 400
	s, from, to, err := h.request(r)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the client never sends data; a read error means it went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	write := func(msg StreamMessage) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(msg)
	}

	var trades []contracts.Trade
	skips, err := h.engine.Stream(ctx, from, to, s, func(t contracts.Trade) error {
		trades = append(trades, t)
		return write(StreamMessage{Type: MessageTrade, Trade: &t})
	})

	h.logger.WithFields(map[string]interface{}{
		"strategy": s.Name,
		"trades":   len(trades),
		"skipped":  len(skips),
	}).Info("Backtest stream finished")

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.WithError(err).WithField("strategy", s.Name).Error("Backtest stream failed")
		write(StreamMessage{Type: MessageError, Error: err.Error()})
	} else {
		summary := backtest.Summarize(trades)
		if err := write(StreamMessage{Type: MessageSummary, Summary: &summary, Skipped: len(skips)}); err != nil {
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
