package block

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v5Fixture = `{
	"id": "blk1",
	"version": "v5",
	"type": "choice",
	"items": [
		{"id": "1", "blockId": "blk1", "content": "Yes"},
		{"id": "2", "blockId": "blk1", "content": "No"},
		{"id": "3", "blockId": "blk1", "content": "Other", "value": "OTH"},
		{"id": "4", "blockId": "blk1"}
	],
	"options": {"isMultipleChoice": true, "variableId": "var1"}
}`

func TestRegistry_LoadV5UpgradesToLatest(t *testing.T) {
	r := NewRegistry()

	b, err := r.Load([]byte(v5Fixture))
	require.NoError(t, err)

	assert.Equal(t, Latest, b.Version)
	assert.Equal(t, "blk1", b.ID)
	require.Len(t, b.Items, 4)
	ids := make([]string, len(b.Items))
	for i, it := range b.Items {
		ids[i] = it.ID
		assert.Equal(t, "blk1", it.BlockID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
	assert.Equal(t, "Other", *b.Items[2].Content)
	assert.Equal(t, "OTH", *b.Items[2].Value)
	assert.Nil(t, b.Items[3].Content)
	assert.Nil(t, b.Items[3].Value)
	assert.True(t, *b.Options.IsMultipleChoice)
	assert.Equal(t, "var1", *b.Options.VariableID)
}

func TestRegistry_V5ResolvesToValidV6Consumer(t *testing.T) {
	r := NewRegistry()
	canonical, err := r.Load([]byte(v5Fixture))
	require.NoError(t, err)

	data, err := json.Marshal(canonical)
	require.NoError(t, err)

	raw, err := r.Decode(data)
	require.NoError(t, err)
	v6, ok := raw.(BlockV6)
	require.True(t, ok, "canonical JSON must decode as a v6 block, got %T", raw)
	require.NoError(t, r.Validate(v6))

	again, err := r.Resolve(v6)
	require.NoError(t, err)
	assert.Equal(t, canonical, again)
}

func TestRegistry_ResolveV6KeepsExtraFields(t *testing.T) {
	r := NewRegistry()
	in := BlockV6{
		ID:      "b",
		Version: V6,
		Type:    TypeChoice,
		Items: []ItemV6{
			{ID: "a", OutgoingEdgeID: "edge-a", Content: String("A")},
		},
	}

	out, err := r.Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, "edge-a", out.Items[0].OutgoingEdgeID)

	*out.Items[0].Content = "changed"
	assert.Equal(t, "A", *in.Items[0].Content, "resolve must not alias the input")
}

func TestRegistry_UnknownVersion(t *testing.T) {
	r := NewRegistry()

	_, err := r.Load([]byte(`{"id":"b","version":"v7","type":"choice","items":[]}`))
	require.ErrorIs(t, err, ErrUnknownVersion)
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, Version("v7"), verr.Version)

	_, err = r.Load([]byte(`{"id":"b","type":"choice","items":[]}`))
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestRegistry_RestrictedVersions(t *testing.T) {
	r := NewRegistry(V6)
	assert.Equal(t, []Version{V6}, r.Versions())

	_, err := r.Resolve(BlockV5{ID: "b", Version: V5, Type: TypeChoice})
	assert.ErrorIs(t, err, ErrUnknownVersion)

	_, err = r.Resolve(nil)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestRegistry_ResolvePointers(t *testing.T) {
	r := NewRegistry()

	b, err := r.Resolve(&BlockV5{ID: "b", Version: V5, Type: TypeChoice, Items: []ItemV5{{ID: "1"}}})
	require.NoError(t, err)
	assert.Equal(t, Latest, b.Version)
	assert.Equal(t, "1", b.Items[0].ID)

	for _, raw := range []VersionedBlock{(*BlockV5)(nil), (*BlockV6)(nil)} {
		assert.NotPanics(t, func() {
			_, err = r.Resolve(raw)
		})
		assert.ErrorIs(t, err, ErrUnknownVersion)
	}
}

func TestRegistry_NewRegistryPanicsOnUnknownVariant(t *testing.T) {
	assert.Panics(t, func() { NewRegistry("v99") })
}

func TestRegistry_MalformedItems(t *testing.T) {
	r := NewRegistry()

	cases := map[string]string{
		"missing id":   `{"id":"b","version":"v6","type":"choice","items":[{"content":"x"}]}`,
		"empty id":     `{"id":"b","version":"v6","type":"choice","items":[{"id":"","content":"x"}]}`,
		"duplicate id": `{"id":"b","version":"v5","type":"choice","items":[{"id":"1"},{"id":"1"}]}`,
		"wrong type":   `{"id":"b","version":"v6","type":"text","items":[]}`,
		"not json":     `{"id":`,
		"bad items":    `{"id":"b","version":"v6","type":"choice","items":"nope"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Load([]byte(payload))
			assert.ErrorIs(t, err, ErrMalformedBlock)
		})
	}
}

func TestRegistry_JSONSchema(t *testing.T) {
	r := NewRegistry()

	s, err := r.JSONSchema(V5)
	require.NoError(t, err)
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "items")
	assert.Contains(t, props, "options")
	assert.Contains(t, string(data), `"v5"`)

	_, err = r.JSONSchema("v1")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}
