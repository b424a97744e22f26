package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/pose"
	"github.com/ayusman/strokerehab/internal/server/api"
)

const (
	maxMessageBytes = 1 << 20
	idleTimeout     = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Client messages are JSON text frames, or msgpack-encoded pose.Frame
// binary frames.
type clientMessage struct {
	Type string `json:"type"` // "frame" (default) or "finish"
	pose.Frame
}

// Server messages.
type recordMessage struct {
	Type   string              `json:"type"`
	Index  int                 `json:"index"`
	Record biomech.FrameRecord `json:"record"`
}

type resultMessage struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Label      string  `json:"label"`
	Category   string  `json:"category"`
	Model      string  `json:"model"`
	FrameCount int     `json:"frame_count"`
}

type noResultMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// StreamHandler scores attempts streamed frame by frame over a WebSocket.
// Each connection is one attempt.
type StreamHandler struct {
	scorer *app.Scorer
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(scorer *app.Scorer) *StreamHandler {
	return &StreamHandler{scorer: scorer}
}

// ServeHTTP handles GET /api/stream?username=&exercise=.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	meta := app.Meta{
		Username: r.URL.Query().Get("username"),
		Exercise: r.URL.Query().Get("exercise"),
	}
	if meta.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	ctx := r.Context()
	live, err := h.scorer.NewLiveAttempt(ctx, meta)
	if err != nil {
		conn.WriteJSON(errorMessage{Type: "error", Error: err.Error()})
		return
	}
	defer live.Close(ctx)

	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("stream closed before finish", "username", meta.Username, "frames", live.Len(), "error", err)
			}
			return
		}

		msg, err := decodeMessage(kind, data)
		if err != nil {
			conn.WriteJSON(errorMessage{Type: "error", Error: err.Error()})
			continue
		}

		if msg.Type == "finish" {
			h.finish(ctx, conn, live)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		rec, err := live.Add(msg.Frame)
		if err != nil {
			conn.WriteJSON(errorMessage{Type: "error", Error: err.Error()})
			continue
		}
		if err := conn.WriteJSON(recordMessage{Type: "record", Index: live.Len() - 1, Record: rec}); err != nil {
			return
		}
	}
}

func (h *StreamHandler) finish(ctx context.Context, conn *websocket.Conn, live *app.LiveAttempt) {
	res, err := live.Finish(ctx)
	if err != nil {
		reason := string(app.ReasonInternal)
		if rs, ok := app.ReasonOf(err); ok {
			reason = string(rs)
		}
		conn.WriteJSON(noResultMessage{Type: "no_result", Reason: reason, Error: err.Error()})
		return
	}

	conn.WriteJSON(resultMessage{
		Type:       "result",
		ID:         res.AttemptID,
		Score:      res.Prediction.Score,
		Label:      res.Prediction.Label,
		Category:   api.Category(res.Prediction.Score),
		Model:      res.Prediction.Model,
		FrameCount: res.FrameCount,
	})
}

func decodeMessage(kind int, data []byte) (clientMessage, error) {
	var msg clientMessage
	switch kind {
	case websocket.TextMessage:
		if err := json.Unmarshal(data, &msg); err != nil {
			return msg, errors.New("invalid JSON message")
		}
	case websocket.BinaryMessage:
		if err := msgpack.Unmarshal(data, &msg.Frame); err != nil {
			return msg, errors.New("invalid msgpack frame")
		}
	default:
		return msg, errors.New("unsupported message type")
	}

	switch msg.Type {
	case "", "frame", "finish":
		return msg, nil
	}
	return msg, errors.New("unknown message type " + msg.Type)
}
