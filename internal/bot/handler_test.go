package bot

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/choice"
	"github.com/lojasmm/choicebot/internal/session"
	"github.com/lojasmm/choicebot/internal/store"
)

type recordingChannel struct {
	mu        sync.Mutex
	presented []choice.View
	delivered []choice.Submission
}

func (c *recordingChannel) Present(_ context.Context, _ string, v choice.View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presented = append(c.presented, v)
	return nil
}

func (c *recordingChannel) Deliver(_ context.Context, _ string, s choice.Submission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, s)
	return nil
}

type fixture struct {
	h     *Handler
	db    *store.BoltStore
	ch    *recordingChannel
	locks *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ch := &recordingChannel{}
	locks := session.NewManager()
	h := NewHandler(block.NewRegistry(), Stores{Blocks: db, Turns: db, Variables: db}, locks, ch, zerolog.Nop())
	return &fixture{h: h, db: db, ch: ch, locks: locks}
}

func (f *fixture) saveBlock(t *testing.T, id, raw string) {
	t.Helper()
	require.NoError(t, f.db.SaveBlock(context.Background(), id, []byte(raw)))
}

const yesNoBlock = `{
	"id": "yesno", "version": "v5", "type": "choice",
	"items": [
		{"id": "1", "content": "Yes"},
		{"id": "2", "content": "No"},
		{"id": "3", "content": "Other", "value": "OTH"}
	],
	"options": {"variableId": "answer"}
}`

func TestHandler_SingleSelectCompletesTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "yesno", yesNoBlock)

	res, err := f.h.StartTurn(ctx, "c1", "yesno")
	require.NoError(t, err)
	assert.NotEmpty(t, res.TurnID)
	assert.Len(t, res.View.Items, 3)
	require.Len(t, f.ch.presented, 1)

	res, err = f.h.HandleEvent(ctx, "c1", choice.ItemActivate{ItemID: "3"}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "OTH", res.Submission.Value)
	require.NotNil(t, res.Submission.Label)
	assert.Equal(t, "Other", *res.Submission.Label)

	require.Len(t, f.ch.delivered, 1)
	assert.Equal(t, *res.Submission, f.ch.delivered[0])

	v, err := f.db.GetVariable(ctx, "c1", "answer")
	require.NoError(t, err)
	assert.JSONEq(t, `"OTH"`, string(v))

	_, err = f.h.HandleEvent(ctx, "c1", choice.ItemActivate{ItemID: "1"}, nil)
	assert.ErrorIs(t, err, ErrNoActiveTurn)
}

func TestHandler_NoActiveTurn(t *testing.T) {
	f := newFixture(t)

	_, err := f.h.HandleEvent(context.Background(), "nobody", choice.Submit{}, nil)
	assert.ErrorIs(t, err, ErrNoActiveTurn)
	_, err = f.h.CurrentTurn(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoActiveTurn)
}

func TestHandler_StartTurnErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.h.StartTurn(ctx, "c1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.saveBlock(t, "future", `{"id":"future","version":"v9","type":"choice","items":[]}`)
	_, err = f.h.StartTurn(ctx, "c1", "future")
	assert.ErrorIs(t, err, block.ErrUnknownVersion)

	f.saveBlock(t, "dup", `{"id":"dup","version":"v6","type":"choice","items":[{"id":"a"},{"id":"a"}]}`)
	_, err = f.h.StartTurn(ctx, "c1", "dup")
	assert.ErrorIs(t, err, block.ErrMalformedBlock)

	assert.Empty(t, f.ch.presented)
}

func TestHandler_MultiSelectOverInbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "colors", `{
		"id": "colors", "version": "v6", "type": "choice",
		"items": [{"id":"r","content":"Red"},{"id":"g","content":"Green"},{"id":"b","content":"Blue"}],
		"options": {"isMultipleChoice": true, "buttonLabel": "Done", "variableId": "colors"}
	}`)

	_, err := f.h.StartTurn(ctx, "c1", "colors")
	require.NoError(t, err)

	res, err := f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: ItemReplyID("b")})
	require.NoError(t, err)
	assert.Equal(t, "Done", res.View.SubmitLabel)

	_, err = f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: ItemReplyID("r")})
	require.NoError(t, err)

	res, err = f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: SubmitReplyID})
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "Blue, Red", res.Submission.Value)
	assert.Nil(t, res.Submission.Label)

	v, err := f.db.GetVariable(ctx, "c1", "colors")
	require.NoError(t, err)
	assert.JSONEq(t, `"Blue, Red"`, string(v))
}

func TestHandler_ItemIDsMatchingControlsStaySelectable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "controls", `{
		"id": "controls", "version": "v6", "type": "choice",
		"items": [{"id":"choicebot:submit","content":"Go"},{"id":"choicebot:back","content":"Stay"}]
	}`)

	_, err := f.h.StartTurn(ctx, "c1", "controls")
	require.NoError(t, err)

	res, err := f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: SubmitReplyID})
	require.NoError(t, err)
	assert.Nil(t, res.Submission)

	res, err = f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: ItemReplyID(SubmitReplyID)})
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "Go", res.Submission.Value)
}

func TestHandler_UnknownReplyIDIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "yesno", yesNoBlock)

	_, err := f.h.StartTurn(ctx, "c1", "yesno")
	require.NoError(t, err)

	res, err := f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: "1"})
	require.NoError(t, err)
	assert.Nil(t, res.Submission)
	assert.Len(t, res.View.Items, 3)
}

func TestHandler_TextInputOverInbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "other", `{
		"id": "other", "version": "v6", "type": "choice",
		"items": [{"id":"1","content":"Something else"}],
		"options": {"isTextInputOnClick": true}
	}`)

	_, err := f.h.StartTurn(ctx, "c1", "other")
	require.NoError(t, err)

	res, err := f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: ItemReplyID("1")})
	require.NoError(t, err)
	assert.True(t, res.FocusText)
	assert.Equal(t, choice.ModeText, res.View.Mode)

	res, err = f.h.HandleInbound(ctx, "c1", Inbound{Text: "   "})
	require.NoError(t, err)
	assert.Nil(t, res.Submission)

	res, err = f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: BackReplyID})
	require.NoError(t, err)
	assert.Equal(t, choice.ModeButtons, res.View.Mode)

	_, err = f.h.HandleInbound(ctx, "c1", Inbound{ReplyID: ItemReplyID("1")})
	require.NoError(t, err)
	res, err = f.h.HandleInbound(ctx, "c1", Inbound{Text: "hello"})
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, choice.Submission{Type: choice.SubmissionText, Value: "hello"}, *res.Submission)
}

func TestHandler_SearchAndLabelMatchOverInbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "fruit", `{
		"id": "fruit", "version": "v6", "type": "choice",
		"items": [{"id":"1","content":"Apple"},{"id":"2","content":"Plum"},{"id":"3","content":"Banana"}],
		"options": {"isSearchable": true, "areInitialSearchButtonsVisible": false}
	}`)
	f.saveBlock(t, "yesno", yesNoBlock)

	res, err := f.h.StartTurn(ctx, "c1", "fruit")
	require.NoError(t, err)
	assert.Empty(t, res.View.Items)

	res, err = f.h.HandleInbound(ctx, "c1", Inbound{Text: "an"})
	require.NoError(t, err)
	require.Len(t, res.View.Items, 1)
	assert.Equal(t, "Banana", res.View.Items[0].Label)

	_, err = f.h.StartTurn(ctx, "c2", "yesno")
	require.NoError(t, err)

	res, err = f.h.HandleInbound(ctx, "c2", Inbound{Text: "maybe"})
	require.NoError(t, err)
	assert.Nil(t, res.Submission)

	res, err = f.h.HandleInbound(ctx, "c2", Inbound{Text: " yes "})
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "Yes", res.Submission.Value)
}

func TestHandler_TurnSurvivesHandlerRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "colors", `{
		"id": "colors", "version": "v6", "type": "choice",
		"items": [{"id":"r","content":"Red"},{"id":"g","content":"Green"}],
		"options": {"isMultipleChoice": true}
	}`)

	_, err := f.h.StartTurn(ctx, "c1", "colors")
	require.NoError(t, err)
	_, err = f.h.HandleEvent(ctx, "c1", choice.ItemActivate{ItemID: "g"}, nil)
	require.NoError(t, err)

	// Editing the stored block does not affect the running turn.
	f.saveBlock(t, "colors", `{"id":"colors","version":"v6","type":"choice","items":[]}`)

	again := NewHandler(block.NewRegistry(), Stores{Blocks: f.db, Turns: f.db, Variables: f.db}, session.NewManager(), nil, zerolog.Nop())
	cur, err := again.CurrentTurn(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, cur.View.Items[1].Selected)

	res, err := again.HandleEvent(ctx, "c1", choice.Submit{}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "Green", res.Submission.Value)
}

func TestHandler_DynamicItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveBlock(t, "dyn", `{
		"id": "dyn", "version": "v6", "type": "choice", "items": [],
		"options": {"dynamicVariableId": "cities"}
	}`)

	res, err := f.h.StartTurn(ctx, "c1", "dyn")
	require.NoError(t, err)
	assert.Empty(t, res.View.Items)

	require.NoError(t, f.db.SetVariable(ctx, "c1", "cities", json.RawMessage(`["Lisbon", null, "", "Porto"]`)))
	res, err = f.h.StartTurn(ctx, "c1", "dyn")
	require.NoError(t, err)
	require.Len(t, res.View.Items, 2)
	assert.Equal(t, "Porto", res.View.Items[1].Label)

	res, err = f.h.HandleEvent(ctx, "c1", choice.ItemActivate{ItemID: res.View.Items[1].ID}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "Porto", res.Submission.Value)
}

func TestDynamicItems(t *testing.T) {
	b := block.CanonicalBlock{ID: "dyn", OutgoingEdgeID: "edge"}

	first := DynamicItems(b, json.RawMessage(`["a","b","a"]`))
	second := DynamicItems(b, json.RawMessage(`["a","b","a"]`))
	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0].ID, first[2].ID)
	assert.Equal(t, "edge", first[0].OutgoingEdgeID)
	assert.Equal(t, "dyn", first[0].BlockID)

	single := DynamicItems(b, json.RawMessage(`"only"`))
	require.Len(t, single, 1)
	assert.Equal(t, "only", *single[0].Content)

	assert.Empty(t, DynamicItems(b, json.RawMessage(`{"a":1}`)))
	assert.Empty(t, DynamicItems(b, json.RawMessage(`[1,2]`)))
}
