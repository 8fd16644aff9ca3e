package choice

import (
	"slices"
	"strings"

	"github.com/lojasmm/choicebot/internal/block"
)

// TextInputPlaceholder is shown in the free-text input.
const TextInputPlaceholder = "Type your answer..."

// selection is the part of the runtime that differs between single and
// multiple choice. Search, mode switching and the free-text path are shared.
type selection interface {
	activate(r *Runtime, s State, it block.Item) Step
	submit(r *Runtime, s State) Step
}

// Runtime drives one rendered choice block. It holds the resolved options
// and the full item list; all interaction state lives in State values.
type Runtime struct {
	opts  block.ResolvedOptions
	items []block.Item
	sel   selection
}

// New builds a runtime for b. items is the list to render, normally b.Items
// or a list built from a dynamic variable.
func New(b block.CanonicalBlock, items []block.Item) *Runtime {
	opts := block.DefaultsFor(b.Options)
	r := &Runtime{opts: opts, items: slices.Clone(items)}
	if opts.IsMultipleChoice {
		r.sel = multiSelect{}
	} else {
		r.sel = singleSelect{}
	}
	return r
}

// Options returns the resolved options the runtime reads.
func (r *Runtime) Options() block.ResolvedOptions { return r.opts }

// Items returns the full item list in render order.
func (r *Runtime) Items() []block.Item { return slices.Clone(r.items) }

// Start returns the initial state.
func (r *Runtime) Start() State {
	return State{Mode: ModeButtons, Visible: r.initialVisible()}
}

// Apply computes the transition for ev. Events that do not apply to the
// current mode leave the state unchanged.
func (r *Runtime) Apply(s State, ev Event) Step {
	switch e := ev.(type) {
	case SearchInput:
		s.Visible = r.filter(e.Text)
		return Step{State: s}

	case ItemActivate:
		if s.Mode != ModeButtons {
			return Step{State: s}
		}
		it, ok := visibleItem(s, e.ItemID)
		if !ok {
			return Step{State: s}
		}
		if r.opts.IsTextInputOnClick {
			return enterText(s)
		}
		return r.sel.activate(r, s, it)

	case TextChange:
		if s.Mode == ModeText {
			s.TextValue = e.Text
		}
		return Step{State: s}

	case TextSubmit:
		if s.Mode != ModeText || strings.TrimSpace(s.TextValue) == "" {
			return Step{State: s}
		}
		return Step{State: s, Submission: &Submission{Type: SubmissionText, Value: s.TextValue}}

	case Back:
		if s.Mode == ModeText {
			s.Mode = ModeButtons
			s.TextValue = ""
		}
		return Step{State: s}

	case Submit:
		if s.Mode != ModeButtons {
			return Step{State: s}
		}
		return r.sel.submit(r, s)
	}
	return Step{State: s}
}

func (r *Runtime) initialVisible() []block.Item {
	if r.opts.StartsEmpty() {
		return []block.Item{}
	}
	return slices.Clone(r.items)
}

// filter keeps the items whose content contains query, case-insensitively,
// in their original order. A blank query restores the initial list.
func (r *Runtime) filter(query string) []block.Item {
	if strings.TrimSpace(query) == "" {
		return r.initialVisible()
	}
	q := strings.ToLower(query)
	out := []block.Item{}
	for _, it := range r.items {
		if it.Content != nil && strings.Contains(strings.ToLower(*it.Content), q) {
			out = append(out, it)
		}
	}
	return out
}

func (r *Runtime) itemByID(id string) (block.Item, bool) {
	for _, it := range r.items {
		if it.ID == id {
			return it, true
		}
	}
	return block.Item{}, false
}

func visibleItem(s State, id string) (block.Item, bool) {
	for _, it := range s.Visible {
		if it.ID == id {
			return it, true
		}
	}
	return block.Item{}, false
}

func enterText(s State) Step {
	s.Mode = ModeText
	s.TextValue = ""
	s.Selected = nil
	return Step{State: s, FocusText: true}
}

type singleSelect struct{}

func (singleSelect) activate(_ *Runtime, s State, it block.Item) Step {
	sub := &Submission{Type: SubmissionText, Value: submitValue(it)}
	if it.HasValue() && it.Content != nil {
		label := *it.Content
		sub.Label = &label
	}
	return Step{State: s, Submission: sub}
}

func (singleSelect) submit(_ *Runtime, s State) Step { return Step{State: s} }

type multiSelect struct{}

func (multiSelect) activate(_ *Runtime, s State, it block.Item) Step {
	if i := slices.Index(s.Selected, it.ID); i >= 0 {
		s.Selected = slices.Delete(slices.Clone(s.Selected), i, i+1)
		if len(s.Selected) == 0 {
			s.Selected = nil
		}
	} else {
		s.Selected = append(slices.Clone(s.Selected), it.ID)
	}
	return Step{State: s}
}

func (multiSelect) submit(r *Runtime, s State) Step {
	var (
		values   []string
		labels   []string
		hasValue bool
	)
	for _, id := range s.Selected {
		it, ok := r.itemByID(id)
		if !ok {
			continue
		}
		values = append(values, submitValue(it))
		labels = append(labels, labelOf(it))
		if it.HasValue() {
			hasValue = true
		}
	}
	if len(values) == 0 {
		return Step{State: s}
	}
	sub := &Submission{Type: SubmissionText, Value: strings.Join(values, ", ")}
	if hasValue {
		label := strings.Join(labels, ", ")
		sub.Label = &label
	}
	return Step{State: s, Submission: sub}
}

// submitValue is the item's value, falling back to its content.
func submitValue(it block.Item) string {
	if it.HasValue() {
		return *it.Value
	}
	if it.Content != nil {
		return *it.Content
	}
	return ""
}

// labelOf is the item's content, falling back to its value.
func labelOf(it block.Item) string {
	if it.Content != nil {
		return *it.Content
	}
	if it.Value != nil {
		return *it.Value
	}
	return ""
}
