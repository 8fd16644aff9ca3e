package block

// Version tags a persisted block with the schema it was written with.
type Version string

const (
	V5 Version = "v5"
	V6 Version = "v6"

	// Latest is the canonical shape every persisted block is upgraded to.
	Latest = V6
)

// TypeChoice is the only block type this package understands.
const TypeChoice = "choice"

// ItemV5 is one selectable option as persisted by v5 blocks.
type ItemV5 struct {
	ID      string  `json:"id" validate:"required"`
	BlockID string  `json:"blockId,omitempty"`
	Content *string `json:"content,omitempty"`
	Value   *string `json:"value,omitempty"`
}

// ItemV6 is the v6 item shape. It is a superset of ItemV5.
type ItemV6 struct {
	ID             string  `json:"id" validate:"required"`
	BlockID        string  `json:"blockId,omitempty"`
	OutgoingEdgeID string  `json:"outgoingEdgeId,omitempty"`
	Content        *string `json:"content,omitempty"`
	Value          *string `json:"value,omitempty"`
}

// Item is the canonical item shape.
type Item = ItemV6

// HasValue reports whether the item carries an internal value distinct from
// its display label. An empty value counts as absent.
func (i Item) HasValue() bool { return i.Value != nil && *i.Value != "" }

// Options is the persisted behavioral configuration of a block. Every field
// is optional; read them through DefaultsFor.
type Options struct {
	IsMultipleChoice               *bool   `json:"isMultipleChoice,omitempty"`
	ButtonLabel                    *string `json:"buttonLabel,omitempty"`
	DynamicVariableID              *string `json:"dynamicVariableId,omitempty"`
	IsSearchable                   *bool   `json:"isSearchable,omitempty"`
	SearchInputPlaceholder         *string `json:"searchInputPlaceholder,omitempty"`
	AreInitialSearchButtonsVisible *bool   `json:"areInitialSearchButtonsVisible,omitempty"`
	IsTextInputOnClick             *bool   `json:"isTextInputOnClick,omitempty"`
	VariableID                     *string `json:"variableId,omitempty"`
}

// VersionedBlock is a persisted block decoded into its version's variant.
// The set of variants is closed: BlockV5 and BlockV6.
type VersionedBlock interface {
	BlockVersion() Version
	isVersioned()
}

// BlockV5 is a choice block persisted with schema v5.
type BlockV5 struct {
	ID             string   `json:"id" validate:"required"`
	Version        Version  `json:"version" jsonschema:"enum=v5"`
	Type           string   `json:"type" validate:"eq=choice" jsonschema:"enum=choice"`
	OutgoingEdgeID string   `json:"outgoingEdgeId,omitempty"`
	Items          []ItemV5 `json:"items" validate:"unique=ID,dive"`
	Options        Options  `json:"options,omitempty"`
}

func (BlockV5) BlockVersion() Version { return V5 }
func (BlockV5) isVersioned()          {}

// BlockV6 is a choice block persisted with schema v6.
type BlockV6 struct {
	ID             string   `json:"id" validate:"required"`
	Version        Version  `json:"version" jsonschema:"enum=v6"`
	Type           string   `json:"type" validate:"eq=choice" jsonschema:"enum=choice"`
	OutgoingEdgeID string   `json:"outgoingEdgeId,omitempty"`
	Items          []ItemV6 `json:"items" validate:"unique=ID,dive"`
	Options        Options  `json:"options,omitempty"`
}

func (BlockV6) BlockVersion() Version { return V6 }
func (BlockV6) isVersioned()          {}

// CanonicalBlock is a block migrated to the Latest shape. Its JSON form is a
// valid Latest persisted block.
type CanonicalBlock struct {
	ID             string  `json:"id"`
	Version        Version `json:"version"`
	Type           string  `json:"type"`
	OutgoingEdgeID string  `json:"outgoingEdgeId,omitempty"`
	Items          []Item  `json:"items"`
	Options        Options `json:"options"`
}

// Resolved returns the block's options with every default applied.
func (b CanonicalBlock) Resolved() ResolvedOptions { return DefaultsFor(b.Options) }
