package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/choice"
)

// ErrNotFound is returned when a block, turn or variable does not exist.
var ErrNotFound = errors.New("not found")

// Turn is the choice block currently awaiting an answer in a conversation.
// It snapshots the resolved block and materialized items so a turn keeps
// behaving the same even if the stored block changes underneath it.
type Turn struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversation_id"`
	BlockID        string               `json:"block_id"`
	Block          block.CanonicalBlock `json:"block"`
	Items          []block.Item         `json:"items"`
	State          choice.State         `json:"state"`
	StartedAt      time.Time            `json:"started_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// BlockStore keeps persisted blocks as raw JSON, exactly as authored.
type BlockStore interface {
	SaveBlock(ctx context.Context, id string, raw []byte) error
	GetBlock(ctx context.Context, id string) ([]byte, error)
	DeleteBlock(ctx context.Context, id string) error
	ListBlocks(ctx context.Context) ([]string, error)
}

// TurnStore keeps at most one active turn per conversation.
type TurnStore interface {
	SaveTurn(ctx context.Context, t Turn) error
	GetTurn(ctx context.Context, conversationID string) (*Turn, error)
	DeleteTurn(ctx context.Context, conversationID string) error
}

// VariableStore keeps conversation variables as JSON values.
type VariableStore interface {
	SetVariable(ctx context.Context, conversationID, variableID string, value json.RawMessage) error
	GetVariable(ctx context.Context, conversationID, variableID string) (json.RawMessage, error)
}
