package choice

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned by DecodeEvent for an unrecognized event type.
var ErrUnknownEvent = errors.New("unknown event")

// Event is a discrete user action fed to Runtime.Apply.
type Event interface {
	Name() string
}

// SearchInput replaces the content of the search box.
type SearchInput struct{ Text string }

// ItemActivate is a click on (or toggle of) a visible item.
type ItemActivate struct{ ItemID string }

// TextChange replaces the content of the free-text input.
type TextChange struct{ Text string }

// TextSubmit sends the free-text input.
type TextSubmit struct{}

// Back leaves free-text mode.
type Back struct{}

// Submit sends a multiple-choice selection.
type Submit struct{}

func (SearchInput) Name() string  { return "search" }
func (ItemActivate) Name() string { return "activate" }
func (TextChange) Name() string   { return "text" }
func (TextSubmit) Name() string   { return "text_submit" }
func (Back) Name() string         { return "back" }
func (Submit) Name() string       { return "submit" }

type wireEvent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	ItemID string `json:"itemId,omitempty"`
}

// DecodeEvent parses the wire form of an event:
//
//	{"type":"search","text":"ap"}
//	{"type":"activate","itemId":"2"}
//	{"type":"text","text":"hello"}
//	{"type":"text_submit"} {"type":"back"} {"type":"submit"}
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	switch w.Type {
	case "search":
		return SearchInput{Text: w.Text}, nil
	case "activate":
		return ItemActivate{ItemID: w.ItemID}, nil
	case "text":
		return TextChange{Text: w.Text}, nil
	case "text_submit":
		return TextSubmit{}, nil
	case "back":
		return Back{}, nil
	case "submit":
		return Submit{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Type)
	}
}

// EncodeEvent is the inverse of DecodeEvent.
func EncodeEvent(ev Event) ([]byte, error) {
	w := wireEvent{Type: ev.Name()}
	switch e := ev.(type) {
	case SearchInput:
		w.Text = e.Text
	case ItemActivate:
		w.ItemID = e.ItemID
	case TextChange:
		w.Text = e.Text
	}
	return json.Marshal(w)
}
