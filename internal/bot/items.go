package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/store"
)

// itemNamespace seeds the name-based ids of dynamic items.
var itemNamespace = uuid.MustParse("6f1c1f7e-3c55-4d6a-9a43-2f0e9b7c2d10")

// materialize returns the items a turn renders: the block's own items, or
// the items built from its dynamic variable.
func (h *Handler) materialize(ctx context.Context, conversationID string, b block.CanonicalBlock) ([]block.Item, error) {
	varID := b.Resolved().DynamicVariableID
	if varID == "" {
		return b.Items, nil
	}

	raw, err := h.stores.Variables.GetVariable(ctx, conversationID, varID)
	if errors.Is(err, store.ErrNotFound) {
		h.log.Debug().Str("conversation", conversationID).Str("variable", varID).Msg("dynamic variable not set")
		return []block.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dynamic variable: %w", err)
	}
	return DynamicItems(b, raw), nil
}

// DynamicItems builds items from a variable value. A JSON list yields one
// item per non-empty string entry, a JSON string yields one item, and any
// other value yields none. Ids are derived from the block, the position and
// the value, so rebuilding from the same value gives the same ids.
func DynamicItems(b block.CanonicalBlock, value json.RawMessage) []block.Item {
	var values []*string
	if err := json.Unmarshal(value, &values); err != nil {
		var single string
		if err := json.Unmarshal(value, &single); err != nil {
			return []block.Item{}
		}
		values = []*string{&single}
	}

	items := make([]block.Item, 0, len(values))
	for i, v := range values {
		if v == nil || *v == "" {
			continue
		}
		content := *v
		name := fmt.Sprintf("%s/%d/%s", b.ID, i, content)
		items = append(items, block.Item{
			ID:             uuid.NewSHA1(itemNamespace, []byte(name)).String(),
			BlockID:        b.ID,
			OutgoingEdgeID: b.OutgoingEdgeID,
			Content:        &content,
		})
	}
	return items
}
