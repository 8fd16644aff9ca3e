package bot

import (
	"context"

	"github.com/lojasmm/choicebot/internal/choice"
)

// Reply ids a chat channel attaches to its own controls. Item taps carry
// ItemReplyPrefix followed by the item id, so an item may use any id,
// including these.
const (
	SubmitReplyID   = "choicebot:submit"
	BackReplyID     = "choicebot:back"
	ItemReplyPrefix = "item:"
)

// ItemReplyID is the reply id a channel attaches to the control for item id.
func ItemReplyID(id string) string { return ItemReplyPrefix + id }

// Channel is where a conversation is shown. Present renders the current turn
// and Deliver reports the answer once the turn completes.
type Channel interface {
	Present(ctx context.Context, conversationID string, v choice.View) error
	Deliver(ctx context.Context, conversationID string, s choice.Submission) error
}

// NopChannel is used when the caller renders the returned Result itself,
// as the HTTP API and websocket driver do.
type NopChannel struct{}

func (NopChannel) Present(context.Context, string, choice.View) error        { return nil }
func (NopChannel) Deliver(context.Context, string, choice.Submission) error { return nil }

// Inbound is a chat message received for a conversation: either a tap on an
// interactive control (ReplyID) or free text.
type Inbound struct {
	Text    string
	ReplyID string
}
