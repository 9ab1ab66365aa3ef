package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/api/validate"
	"github.com/dwarpal-ai/dwarpal/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler streams pipeline events to dashboard clients over a websocket.
// Channel "owner" carries ring notifications; a session id carries that
// session's stage updates and replies.
type WSHandler struct {
	bus *events.Bus
}

func NewWSHandler(bus *events.Bus) *WSHandler { return &WSHandler{bus: bus} }

// Serve GET /api/ws/{channel}
//
// Frames sent by the client are discarded; the read loop exists only to
// notice the peer going away.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	if channel != events.OwnerChannel {
		if err := validate.SessionID(channel); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(channel)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				log.Debug().Err(err).Str("channel", channel).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
