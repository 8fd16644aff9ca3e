package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/choice"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Turns is the part of bot.Handler the driver uses.
type Turns interface {
	CurrentTurn(ctx context.Context, conversationID string) (bot.Result, error)
	HandleEvent(ctx context.Context, conversationID string, ev choice.Event, focus choice.Focuser) (bot.Result, error)
}

// Frame is one server message. Focus frames ask the client to focus its
// text input and carry nothing else.
type Frame struct {
	View       *choice.View       `json:"view,omitempty"`
	Submission *choice.Submission `json:"submission,omitempty"`
	Focus      bool               `json:"focus,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Handler drives a conversation's active turn over a websocket. Each client
// frame is one event in its JSON wire form.
type Handler struct {
	turns    Turns
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(turns Turns, log zerolog.Logger) *Handler {
	return &Handler{
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict to the configured BASE_URL origin once the web client is hosted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// ServeWS upgrades GET /ws?conversation=<id>.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conversation")
	if convID == "" {
		http.Error(w, "missing conversation", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("conversation", convID).Msg("failed to upgrade connection")
		return
	}

	log := h.log.With().Str("conversation", convID).Logger()
	log.Info().Msg("websocket connection established")

	c := &client{
		conn: conn,
		send: make(chan Frame, sendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
	go c.writePump()

	ctx := r.Context()
	res, err := h.turns.CurrentTurn(ctx, convID)
	c.push(resultFrame(res, err))

	c.readPump(func(data []byte) {
		ev, err := choice.DecodeEvent(data)
		if err != nil {
			c.push(Frame{Error: err.Error()})
			return
		}
		res, err := h.turns.HandleEvent(ctx, convID, ev, c)
		c.push(resultFrame(res, err))
	})
}

func resultFrame(res bot.Result, err error) Frame {
	switch {
	case errors.Is(err, bot.ErrNoActiveTurn):
		return Frame{Error: bot.ErrNoActiveTurn.Error()}
	case err != nil:
		return Frame{Error: "internal error"}
	}
	return Frame{View: &res.View, Submission: res.Submission}
}

type client struct {
	conn *websocket.Conn
	send chan Frame
	done chan struct{}
	log  zerolog.Logger
}

// push queues f, dropping it when the client is gone or too slow.
func (c *client) push(f Frame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- f:
	default:
		c.log.Warn().Msg("send buffer full, dropping frame")
	}
}

// FocusTextInput implements choice.Focuser.
func (c *client) FocusTextInput() {
	c.push(Frame{Focus: true})
}

func (c *client) readPump(handle func([]byte)) {
	defer func() {
		close(c.done)
		_ = c.conn.Close()
		c.log.Info().Msg("websocket connection closed")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		handle(message)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			data, err := json.Marshal(f)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to encode frame")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn().Err(err).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}
