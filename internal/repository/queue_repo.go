package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dutyfreepos/internal/model"
)

// QueueRepository persists the offline queue as a single ordered JSON list,
// oldest entry first. Callers serialise read-modify-write cycles.
type QueueRepository interface {
	Load(ctx context.Context) ([]model.QueuedRequest, error)
	Save(ctx context.Context, entries []model.QueuedRequest) error
}

type queueRepo struct{ store KVStore }

func NewQueueRepository(store KVStore) QueueRepository { return &queueRepo{store: store} }

func (r *queueRepo) Load(ctx context.Context) ([]model.QueuedRequest, error) {
	var entries []model.QueuedRequest
	if err := loadJSON(ctx, r.store, KeyQueue, &entries); err != nil {
		return nil, fmt.Errorf("queue: load: %w", err)
	}
	return entries, nil
}

func (r *queueRepo) Save(ctx context.Context, entries []model.QueuedRequest) error {
	if entries == nil {
		entries = []model.QueuedRequest{}
	}
	if err := saveJSON(ctx, r.store, KeyQueue, entries); err != nil {
		return fmt.Errorf("queue: save: %w", err)
	}
	return nil
}

// loadJSON decodes key into dest; a missing key leaves dest untouched.
func loadJSON(ctx context.Context, store KVStore, key string, dest any) error {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func saveJSON(ctx context.Context, store KVStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, data)
}
