package block

const (
	DefaultButtonLabel            = "Send"
	DefaultSearchInputPlaceholder = "Filter the options..."
)

// ResolvedOptions is Options with every default filled in. DynamicVariableID
// and VariableID default to absent, represented by the empty string.
type ResolvedOptions struct {
	IsMultipleChoice               bool   `json:"isMultipleChoice"`
	ButtonLabel                    string `json:"buttonLabel"`
	DynamicVariableID              string `json:"dynamicVariableId,omitempty"`
	IsSearchable                   bool   `json:"isSearchable"`
	SearchInputPlaceholder         string `json:"searchInputPlaceholder"`
	AreInitialSearchButtonsVisible bool   `json:"areInitialSearchButtonsVisible"`
	IsTextInputOnClick             bool   `json:"isTextInputOnClick"`
	VariableID                     string `json:"variableId,omitempty"`
}

// DefaultsFor fills every absent field of o with its default. It never
// mutates o and DefaultsFor(DefaultsFor(o).Options()) == DefaultsFor(o).
func DefaultsFor(o Options) ResolvedOptions {
	return ResolvedOptions{
		IsMultipleChoice:               boolOr(o.IsMultipleChoice, false),
		ButtonLabel:                    stringOr(o.ButtonLabel, DefaultButtonLabel),
		DynamicVariableID:              stringOr(o.DynamicVariableID, ""),
		IsSearchable:                   boolOr(o.IsSearchable, false),
		SearchInputPlaceholder:         stringOr(o.SearchInputPlaceholder, DefaultSearchInputPlaceholder),
		AreInitialSearchButtonsVisible: boolOr(o.AreInitialSearchButtonsVisible, true),
		IsTextInputOnClick:             boolOr(o.IsTextInputOnClick, false),
		VariableID:                     stringOr(o.VariableID, ""),
	}
}

// Options converts r back into a fully populated Options value.
func (r ResolvedOptions) Options() Options {
	o := Options{
		IsMultipleChoice:               ptr(r.IsMultipleChoice),
		ButtonLabel:                    ptr(r.ButtonLabel),
		IsSearchable:                   ptr(r.IsSearchable),
		SearchInputPlaceholder:         ptr(r.SearchInputPlaceholder),
		AreInitialSearchButtonsVisible: ptr(r.AreInitialSearchButtonsVisible),
		IsTextInputOnClick:             ptr(r.IsTextInputOnClick),
	}
	if r.DynamicVariableID != "" {
		o.DynamicVariableID = ptr(r.DynamicVariableID)
	}
	if r.VariableID != "" {
		o.VariableID = ptr(r.VariableID)
	}
	return o
}

// StartsEmpty reports whether the visible item list is empty until the user
// types a search query.
func (r ResolvedOptions) StartsEmpty() bool {
	return r.IsSearchable && !r.AreInitialSearchButtonsVisible
}

func (o Options) clone() Options {
	return Options{
		IsMultipleChoice:               clonePtr(o.IsMultipleChoice),
		ButtonLabel:                    clonePtr(o.ButtonLabel),
		DynamicVariableID:              clonePtr(o.DynamicVariableID),
		IsSearchable:                   clonePtr(o.IsSearchable),
		SearchInputPlaceholder:         clonePtr(o.SearchInputPlaceholder),
		AreInitialSearchButtonsVisible: clonePtr(o.AreInitialSearchButtonsVisible),
		IsTextInputOnClick:             clonePtr(o.IsTextInputOnClick),
		VariableID:                     clonePtr(o.VariableID),
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// String returns a pointer to s, for building Items and Options literals.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
