package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/choice"
	"github.com/lojasmm/choicebot/internal/session"
	"github.com/lojasmm/choicebot/internal/store"
)

func newServer(t *testing.T) (*httptest.Server, *bot.Handler) {
	t.Helper()
	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "ws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.SaveBlock(context.Background(), "q", []byte(`{
		"id": "q", "version": "v6", "type": "choice",
		"items": [{"id":"1","content":"Yes"},{"id":"2","content":"Something else"}],
		"options": {"isTextInputOnClick": false}
	}`)))
	require.NoError(t, db.SaveBlock(context.Background(), "free", []byte(`{
		"id": "free", "version": "v6", "type": "choice",
		"items": [{"id":"1","content":"Type it"}],
		"options": {"isTextInputOnClick": true}
	}`)))

	h := bot.NewHandler(block.NewRegistry(), bot.Stores{Blocks: db, Turns: db, Variables: db}, session.NewManager(), nil, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, zerolog.Nop()).ServeWS))
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, conv string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?conversation=" + conv
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServeWS_NoActiveTurn(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv, "c1")

	f := readFrame(t, conn)
	assert.Equal(t, bot.ErrNoActiveTurn.Error(), f.Error)
	assert.Nil(t, f.View)
}

func TestServeWS_SubmitsOverSocket(t *testing.T) {
	srv, h := newServer(t)
	_, err := h.StartTurn(context.Background(), "c1", "q")
	require.NoError(t, err)

	conn := dial(t, srv, "c1")
	f := readFrame(t, conn)
	require.NotNil(t, f.View)
	assert.Len(t, f.View.Items, 2)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	f = readFrame(t, conn)
	assert.Contains(t, f.Error, "unknown event")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"activate","itemId":"1"}`)))
	f = readFrame(t, conn)
	require.NotNil(t, f.Submission)
	assert.Equal(t, "Yes", f.Submission.Value)
}

func TestServeWS_FocusFrameAfterTextMode(t *testing.T) {
	srv, h := newServer(t)
	_, err := h.StartTurn(context.Background(), "c1", "free")
	require.NoError(t, err)

	conn := dial(t, srv, "c1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"activate","itemId":"1"}`)))
	f := readFrame(t, conn)
	require.NotNil(t, f.View)
	assert.Equal(t, choice.ModeText, f.View.Mode)

	f = readFrame(t, conn)
	assert.True(t, f.Focus)
}

func TestServeWS_RequiresConversation(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
