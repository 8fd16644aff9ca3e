package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/choice"
	"github.com/lojasmm/choicebot/internal/metrics"
	"github.com/lojasmm/choicebot/internal/session"
	"github.com/lojasmm/choicebot/internal/store"
)

// ErrNoActiveTurn is returned when a conversation has no turn waiting for
// an answer.
var ErrNoActiveTurn = errors.New("no active turn")

// Result is what a caller shows after starting a turn or applying an event.
type Result struct {
	TurnID     string             `json:"turnId"`
	View       choice.View        `json:"view"`
	Submission *choice.Submission `json:"submission,omitempty"`
	// FocusText is set when the text input was just opened.
	FocusText bool `json:"focusText,omitempty"`
}

// Stores groups the persistence a Handler needs.
type Stores struct {
	Blocks    store.BlockStore
	Turns     store.TurnStore
	Variables store.VariableStore
}

// Handler runs choice turns for conversations. Events for one conversation
// are serialized through the session manager; the turn state between events
// lives in the turn store.
type Handler struct {
	registry *block.Registry
	stores   Stores
	locks    *session.Manager
	channel  Channel
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(reg *block.Registry, stores Stores, locks *session.Manager, ch Channel, log zerolog.Logger) *Handler {
	if ch == nil {
		ch = NopChannel{}
	}
	return &Handler{
		registry: reg,
		stores:   stores,
		locks:    locks,
		channel:  ch,
		log:      log.With().Str("component", "bot").Logger(),
		now:      time.Now,
	}
}

// LoadBlock reads a persisted block and resolves it to the canonical shape.
func (h *Handler) LoadBlock(ctx context.Context, blockID string) (block.CanonicalBlock, error) {
	raw, err := h.stores.Blocks.GetBlock(ctx, blockID)
	if err != nil {
		return block.CanonicalBlock{}, err
	}

	vb, err := h.registry.Decode(raw)
	if err != nil {
		observeResolve(err, "")
		return block.CanonicalBlock{}, fmt.Errorf("block %q: %w", blockID, err)
	}
	version := string(vb.BlockVersion())
	if err := h.registry.Validate(vb); err != nil {
		observeResolve(err, version)
		return block.CanonicalBlock{}, fmt.Errorf("block %q: %w", blockID, err)
	}
	b, err := h.registry.Resolve(vb)
	observeResolve(err, version)
	if err != nil {
		return block.CanonicalBlock{}, fmt.Errorf("block %q: %w", blockID, err)
	}
	return b, nil
}

func observeResolve(err error, version string) {
	outcome := "ok"
	var verr *block.VersionError
	switch {
	case errors.As(err, &verr):
		outcome = "unknown_version"
		version = string(verr.Version)
	case err != nil:
		outcome = "malformed"
	}
	if version == "" {
		version = "none"
	}
	metrics.BlocksResolved.WithLabelValues(version, outcome).Inc()
}

// StartTurn renders blockID as the conversation's active turn, replacing any
// turn that was still waiting.
func (h *Handler) StartTurn(ctx context.Context, conversationID, blockID string) (Result, error) {
	var res Result
	err := h.locks.WithLock(conversationID, func() error {
		b, err := h.LoadBlock(ctx, blockID)
		if err != nil {
			return err
		}
		items, err := h.materialize(ctx, conversationID, b)
		if err != nil {
			return err
		}

		rt := choice.New(b, items)
		now := h.now()
		t := store.Turn{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			BlockID:        blockID,
			Block:          b,
			Items:          items,
			State:          rt.Start(),
			StartedAt:      now,
			UpdatedAt:      now,
		}
		if err := h.stores.Turns.SaveTurn(ctx, t); err != nil {
			return fmt.Errorf("saving turn: %w", err)
		}
		metrics.TurnsStarted.Inc()
		h.log.Info().
			Str("conversation", conversationID).
			Str("block", blockID).
			Str("turn", t.ID).
			Int("items", len(items)).
			Msg("turn started")

		res = Result{TurnID: t.ID, View: rt.View(t.State)}
		if err := h.channel.Present(ctx, conversationID, res.View); err != nil {
			return fmt.Errorf("presenting turn: %w", err)
		}
		return nil
	})
	return res, err
}

// CurrentTurn returns the view of the conversation's active turn.
func (h *Handler) CurrentTurn(ctx context.Context, conversationID string) (Result, error) {
	t, err := h.activeTurn(ctx, conversationID)
	if err != nil {
		return Result{}, err
	}
	rt := choice.New(t.Block, t.Items)
	return Result{TurnID: t.ID, View: rt.View(t.State)}, nil
}

// HandleEvent applies ev to the conversation's active turn. focus, when not
// nil, is asked to focus the text input after the turn switches to text mode.
func (h *Handler) HandleEvent(ctx context.Context, conversationID string, ev choice.Event, focus choice.Focuser) (Result, error) {
	return h.apply(ctx, conversationID, focus, func(store.Turn, *choice.Runtime) []choice.Event {
		return []choice.Event{ev}
	})
}

// HandleInbound maps a chat message onto the active turn. A tap carries an
// item reply id or the id of a control. Free text answers the turn in text
// mode, searches a searchable list, or otherwise picks the visible item whose
// label matches it.
func (h *Handler) HandleInbound(ctx context.Context, conversationID string, in Inbound) (Result, error) {
	return h.apply(ctx, conversationID, nil, func(t store.Turn, rt *choice.Runtime) []choice.Event {
		return eventsFor(t.State, rt, in)
	})
}

func eventsFor(s choice.State, rt *choice.Runtime, in Inbound) []choice.Event {
	if id, ok := strings.CutPrefix(in.ReplyID, ItemReplyPrefix); ok {
		return []choice.Event{choice.ItemActivate{ItemID: id}}
	}
	switch in.ReplyID {
	case "":
	case SubmitReplyID:
		return []choice.Event{choice.Submit{}}
	case BackReplyID:
		return []choice.Event{choice.Back{}}
	default:
		// A control from some earlier message we no longer render.
		return nil
	}

	text := strings.TrimSpace(in.Text)
	if s.Mode == choice.ModeText {
		return []choice.Event{choice.TextChange{Text: in.Text}, choice.TextSubmit{}}
	}
	if rt.Options().IsSearchable {
		return []choice.Event{choice.SearchInput{Text: text}}
	}
	for _, it := range s.Visible {
		if it.Content != nil && strings.EqualFold(strings.TrimSpace(*it.Content), text) {
			return []choice.Event{choice.ItemActivate{ItemID: it.ID}}
		}
	}
	return nil
}

func (h *Handler) activeTurn(ctx context.Context, conversationID string) (*store.Turn, error) {
	t, err := h.stores.Turns.GetTurn(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveTurn
	}
	if err != nil {
		return nil, fmt.Errorf("loading turn: %w", err)
	}
	return t, nil
}

func (h *Handler) apply(ctx context.Context, conversationID string, focus choice.Focuser, events func(store.Turn, *choice.Runtime) []choice.Event) (Result, error) {
	var res Result
	err := h.locks.WithLock(conversationID, func() error {
		t, err := h.activeTurn(ctx, conversationID)
		if err != nil {
			return err
		}

		rt := choice.New(t.Block, t.Items)
		sess := choice.ResumeSession(rt, t.State, focus)
		var last choice.Event
		for _, ev := range events(*t, rt) {
			step := sess.Dispatch(ev)
			metrics.RuntimeEvents.WithLabelValues(ev.Name()).Inc()
			last = ev
			res.FocusText = res.FocusText || step.FocusText
			if sess.Done() {
				break
			}
		}
		res.TurnID = t.ID
		res.View = sess.View()

		if sub := sess.Submission(); sub != nil {
			res.Submission = sub
			return h.complete(ctx, t, rt, last, *sub)
		}

		t.State = sess.State()
		t.UpdatedAt = h.now()
		if err := h.stores.Turns.SaveTurn(ctx, *t); err != nil {
			return fmt.Errorf("saving turn: %w", err)
		}
		if err := h.channel.Present(ctx, conversationID, res.View); err != nil {
			return fmt.Errorf("presenting turn: %w", err)
		}
		return nil
	})
	return res, err
}

// complete routes the answer into the block's variable, ends the turn and
// hands the answer to the channel.
func (h *Handler) complete(ctx context.Context, t *store.Turn, rt *choice.Runtime, ev choice.Event, sub choice.Submission) error {
	if varID := rt.Options().VariableID; varID != "" {
		value, err := json.Marshal(sub.Value)
		if err != nil {
			return fmt.Errorf("encoding submission: %w", err)
		}
		if err := h.stores.Variables.SetVariable(ctx, t.ConversationID, varID, value); err != nil {
			return fmt.Errorf("saving variable %q: %w", varID, err)
		}
	}
	if err := h.stores.Turns.DeleteTurn(ctx, t.ConversationID); err != nil {
		return fmt.Errorf("ending turn: %w", err)
	}

	metrics.Submissions.WithLabelValues(submissionSource(ev)).Inc()
	h.log.Info().
		Str("conversation", t.ConversationID).
		Str("block", t.BlockID).
		Str("turn", t.ID).
		Str("value", sub.Value).
		Msg("turn completed")

	if err := h.channel.Deliver(ctx, t.ConversationID, sub); err != nil {
		return fmt.Errorf("delivering submission: %w", err)
	}
	return nil
}

func submissionSource(ev choice.Event) string {
	switch ev.(type) {
	case choice.ItemActivate:
		return "item"
	case choice.Submit:
		return "selection"
	case choice.TextSubmit:
		return "text"
	default:
		return "unknown"
	}
}
