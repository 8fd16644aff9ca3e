package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var (
	// ErrUnknownVersion is returned for a version tag outside the registered set.
	ErrUnknownVersion = errors.New("unknown block version")
	// ErrMalformedBlock is returned for persisted data that fails to decode or
	// violates data integrity (missing or duplicate item ids, wrong type).
	ErrMalformedBlock = errors.New("malformed block")
)

// VersionError names the version tag that could not be resolved.
type VersionError struct {
	Version Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("block: unknown version %q", e.Version)
}

func (e *VersionError) Unwrap() error { return ErrUnknownVersion }

type variant struct {
	decode func(data []byte) (VersionedBlock, error)
	proto  VersionedBlock
}

var knownVariants = map[Version]variant{
	V5: {decode: decodeAs[BlockV5], proto: BlockV5{}},
	V6: {decode: decodeAs[BlockV6], proto: BlockV6{}},
}

var knownOrder = []Version{V5, V6}

// Registry resolves persisted blocks of its registered versions to the
// canonical shape. It is safe for concurrent use.
type Registry struct {
	variants map[Version]variant
	order    []Version
	validate *validator.Validate
}

// NewRegistry returns a registry for the given versions, or for every known
// version when none are given. It panics on a version this package does not
// know how to decode.
func NewRegistry(versions ...Version) *Registry {
	if len(versions) == 0 {
		versions = knownOrder
	}
	r := &Registry{
		variants: make(map[Version]variant, len(versions)),
		validate: validator.New(),
	}
	for _, v := range versions {
		if _, ok := knownVariants[v]; !ok {
			panic(fmt.Sprintf("block: no variant for version %q", v))
		}
	}
	for _, v := range knownOrder {
		if slices.Contains(versions, v) {
			r.variants[v] = knownVariants[v]
			r.order = append(r.order, v)
		}
	}
	return r
}

// Versions lists the registered versions, oldest first.
func (r *Registry) Versions() []Version {
	return append([]Version(nil), r.order...)
}

// Has reports whether v is registered.
func (r *Registry) Has(v Version) bool {
	_, ok := r.variants[v]
	return ok
}

// Decode reads the version tag of a persisted block and decodes it into
// that version's variant.
func (r *Registry) Decode(data []byte) (VersionedBlock, error) {
	var tag struct {
		Version Version `json:"version"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	v, ok := r.variants[tag.Version]
	if !ok {
		return nil, &VersionError{Version: tag.Version}
	}
	return v.decode(data)
}

// Validate checks the data-integrity rules of a decoded block. Missing ids
// are reported, never fabricated.
func (r *Registry) Validate(raw VersionedBlock) error {
	if raw == nil {
		return fmt.Errorf("%w: nil block", ErrMalformedBlock)
	}
	if err := r.validate.Struct(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	return nil
}

// Resolve migrates raw to the canonical shape. Item order and the id,
// content and value of every item are preserved; options pass through.
func (r *Registry) Resolve(raw VersionedBlock) (CanonicalBlock, error) {
	switch b := raw.(type) {
	case nil:
		return CanonicalBlock{}, &VersionError{}
	case *BlockV5:
		if b == nil {
			return CanonicalBlock{}, &VersionError{}
		}
		return r.Resolve(*b)
	case *BlockV6:
		if b == nil {
			return CanonicalBlock{}, &VersionError{}
		}
		return r.Resolve(*b)
	}
	if !r.Has(raw.BlockVersion()) {
		return CanonicalBlock{}, &VersionError{Version: raw.BlockVersion()}
	}
	switch b := raw.(type) {
	case BlockV5:
		return CanonicalBlock{
			ID:             b.ID,
			Version:        Latest,
			Type:           b.Type,
			OutgoingEdgeID: b.OutgoingEdgeID,
			Items:          upgradeV5Items(b.Items),
			Options:        b.Options.clone(),
		}, nil
	case BlockV6:
		return CanonicalBlock{
			ID:             b.ID,
			Version:        Latest,
			Type:           b.Type,
			OutgoingEdgeID: b.OutgoingEdgeID,
			Items:          cloneItems(b.Items),
			Options:        b.Options.clone(),
		}, nil
	default:
		return CanonicalBlock{}, &VersionError{Version: raw.BlockVersion()}
	}
}

// Load decodes, validates and resolves a persisted block.
func (r *Registry) Load(data []byte) (CanonicalBlock, error) {
	raw, err := r.Decode(data)
	if err != nil {
		return CanonicalBlock{}, err
	}
	if err := r.Validate(raw); err != nil {
		return CanonicalBlock{}, err
	}
	return r.Resolve(raw)
}

// JSONSchema describes the persisted format of a registered version.
func (r *Registry) JSONSchema(v Version) (*jsonschema.Schema, error) {
	vr, ok := r.variants[v]
	if !ok {
		return nil, &VersionError{Version: v}
	}
	rf := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	s := rf.Reflect(vr.proto)
	s.Title = fmt.Sprintf("Choice input block (%s)", v)
	return s, nil
}

func decodeAs[T VersionedBlock](data []byte) (VersionedBlock, error) {
	var b T
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	return b, nil
}

func upgradeV5Items(items []ItemV5) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{
			ID:      it.ID,
			BlockID: it.BlockID,
			Content: clonePtr(it.Content),
			Value:   clonePtr(it.Value),
		}
	}
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Content = clonePtr(it.Content)
		it.Value = clonePtr(it.Value)
		out[i] = it
	}
	return out
}
