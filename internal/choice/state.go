package choice

import "github.com/lojasmm/choicebot/internal/block"

// Mode is the active input surface. Exactly one is active at a time.
type Mode string

const (
	ModeButtons Mode = "buttons"
	ModeText    Mode = "text"
)

// State is the interaction state of one rendered block. Treat it as an
// immutable value: Runtime.Apply returns a new State and never writes into
// the slices of the one it was given.
type State struct {
	Mode      Mode         `json:"mode"`
	Visible   []block.Item `json:"visible"`
	TextValue string       `json:"textValue,omitempty"`
	// Selected holds item ids in the order they were selected.
	Selected []string `json:"selected,omitempty"`
}

// IsSelected reports whether id is part of the multiple-choice selection.
func (s State) IsSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// SubmissionText is the only submission type produced by choice blocks.
const SubmissionText = "text"

// Submission is the value produced when the user completes a turn.
type Submission struct {
	Type  string  `json:"type"`
	Value string  `json:"value"`
	Label *string `json:"label,omitempty"`
}

// Step is the outcome of one transition.
type Step struct {
	State      State
	Submission *Submission
	// FocusText asks the host to focus the free-text input shortly after
	// rendering the new state.
	FocusText bool
}
