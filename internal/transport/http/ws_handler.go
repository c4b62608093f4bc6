package http

import (
	"encoding/json"
	"net/http"

	"game-score-engine/internal/app"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/logger"
	"github.com/gorilla/websocket"
)

// WSHandler streams leaderboard snapshots over websockets.
type WSHandler struct {
	boards   *app.LeaderboardService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(boards *app.LeaderboardService, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		boards: boards,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type refreshPayload struct {
	Limit int `json:"limit"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a "leaderboard" frame whenever a
// committed submission changes the board. Clients may send "refresh" to get
// a page of a different size.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	challengeID := r.URL.Query().Get("challengeId")
	if gameID == "" {
		http.Error(w, "missing gameId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.boards.Subscribe(r.Context(), gameID, challengeID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "game_id", gameID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			var payload refreshPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid refresh payload"}})
					continue
				}
			}
			lb, err := h.boards.Top(r.Context(), gameID, challengeID, payload.Limit)
			if err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: publicMessage(err)}})
				continue
			}
			push(outboundMessage[any]{Type: "leaderboard", Payload: lb})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func publicMessage(err error) string {
	if publicKind(domain.KindOf(err)) == domain.KindInternal {
		return "internal error"
	}
	return err.Error()
}
