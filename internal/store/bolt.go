package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	blocksBucket    = []byte("blocks")
	turnsBucket     = []byte("turns")
	variablesBucket = []byte("variables")
)

// BoltStore implements BlockStore, TurnStore and VariableStore on a single
// bbolt file. Variables live in one nested bucket per conversation.
type BoltStore struct {
	db *bolt.DB
}

var (
	_ BlockStore    = (*BoltStore)(nil)
	_ TurnStore     = (*BoltStore)(nil)
	_ VariableStore = (*BoltStore)(nil)
)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{blocksBucket, turnsBucket, variablesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveBlock(_ context.Context, id string, raw []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blocksBucket).Put([]byte(id), raw)
	})
}

func (s *BoltStore) GetBlock(_ context.Context, id string) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blocksBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("block %q: %w", id, ErrNotFound)
		}
		// bbolt values are only valid inside the transaction.
		raw = append([]byte(nil), v...)
		return nil
	})
	return raw, err
}

func (s *BoltStore) DeleteBlock(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(blocksBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("block %q: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// ListBlocks returns block ids in key order.
func (s *BoltStore) ListBlocks(_ context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(blocksBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) SaveTurn(_ context.Context, t Turn) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tx.Bucket(turnsBucket).Put([]byte(t.ConversationID), data)
	})
}

func (s *BoltStore) GetTurn(_ context.Context, conversationID string) (*Turn, error) {
	var t Turn
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(turnsBucket).Get([]byte(conversationID))
		if v == nil {
			return fmt.Errorf("turn for %q: %w", conversationID, ErrNotFound)
		}
		return json.Unmarshal(v, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) DeleteTurn(_ context.Context, conversationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(turnsBucket).Delete([]byte(conversationID))
	})
}

func (s *BoltStore) SetVariable(_ context.Context, conversationID, variableID string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("variable %q: invalid json value", variableID)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		conv, err := tx.Bucket(variablesBucket).CreateBucketIfNotExists([]byte(conversationID))
		if err != nil {
			return err
		}
		return conv.Put([]byte(variableID), value)
	})
}

func (s *BoltStore) GetVariable(_ context.Context, conversationID, variableID string) (json.RawMessage, error) {
	var value json.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		conv := tx.Bucket(variablesBucket).Bucket([]byte(conversationID))
		if conv == nil {
			return fmt.Errorf("variable %q: %w", variableID, ErrNotFound)
		}
		v := conv.Get([]byte(variableID))
		if v == nil {
			return fmt.Errorf("variable %q: %w", variableID, ErrNotFound)
		}
		value = append(json.RawMessage(nil), v...)
		return nil
	})
	return value, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
