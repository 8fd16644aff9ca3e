package choice

// View is a channel-neutral projection of a State, ready to render.
type View struct {
	Mode           Mode       `json:"mode"`
	MultipleChoice bool       `json:"multipleChoice"`
	Search         *SearchBox `json:"search,omitempty"`
	Items          []ViewItem `json:"items"`

	// CanSubmit is set when the multiple-choice submit button is shown.
	CanSubmit       bool   `json:"canSubmit,omitempty"`
	SubmitLabel     string `json:"submitLabel,omitempty"`
	SelectedCount   int    `json:"selectedCount,omitempty"`
	TextPlaceholder string `json:"textPlaceholder,omitempty"`
	TextValue       string `json:"textValue,omitempty"`
}

type SearchBox struct {
	Placeholder string `json:"placeholder"`
}

type ViewItem struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// View projects s for rendering.
func (r *Runtime) View(s State) View {
	v := View{Mode: s.Mode, MultipleChoice: r.opts.IsMultipleChoice, Items: []ViewItem{}}
	if s.Mode == ModeText {
		v.TextPlaceholder = TextInputPlaceholder
		v.TextValue = s.TextValue
		return v
	}
	if r.opts.IsSearchable {
		v.Search = &SearchBox{Placeholder: r.opts.SearchInputPlaceholder}
	}
	for _, it := range s.Visible {
		v.Items = append(v.Items, ViewItem{
			ID:       it.ID,
			Label:    labelOf(it),
			Selected: s.IsSelected(it.ID),
		})
	}
	if r.opts.IsMultipleChoice && len(s.Selected) > 0 {
		v.CanSubmit = true
		v.SubmitLabel = r.opts.ButtonLabel
		v.SelectedCount = len(s.Selected)
	}
	return v
}
