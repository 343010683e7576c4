package repository

import (
	"context"
	"fmt"

	"dutyfreepos/internal/model"
)

// DeadLetterRepository keeps queued requests dropped after the retry ceiling
// until an operator acknowledges them.
type DeadLetterRepository interface {
	Append(ctx context.Context, dl model.DeadLetter) error
	List(ctx context.Context) ([]model.DeadLetter, error)
	Clear(ctx context.Context) (int, error)
}

type deadLetterRepo struct{ store KVStore }

func NewDeadLetterRepository(store KVStore) DeadLetterRepository {
	return &deadLetterRepo{store: store}
}

func (r *deadLetterRepo) Append(ctx context.Context, dl model.DeadLetter) error {
	entries, err := r.List(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, dl)
	if err := saveJSON(ctx, r.store, KeyDeadLetters, entries); err != nil {
		return fmt.Errorf("dead letters: save: %w", err)
	}
	return nil
}

func (r *deadLetterRepo) List(ctx context.Context) ([]model.DeadLetter, error) {
	var entries []model.DeadLetter
	if err := loadJSON(ctx, r.store, KeyDeadLetters, &entries); err != nil {
		return nil, fmt.Errorf("dead letters: load: %w", err)
	}
	return entries, nil
}

func (r *deadLetterRepo) Clear(ctx context.Context) (int, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := saveJSON(ctx, r.store, KeyDeadLetters, []model.DeadLetter{}); err != nil {
		return 0, fmt.Errorf("dead letters: clear: %w", err)
	}
	return len(entries), nil
}
