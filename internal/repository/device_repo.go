package repository

import (
	"context"
	"errors"
)

// DeviceRepository reads and writes the persisted terminal identity.
type DeviceRepository interface {
	// Find returns "" when no identity was ever stored.
	Find(ctx context.Context) (string, error)
	Save(ctx context.Context, deviceID string) error
}

type deviceRepo struct{ store KVStore }

func NewDeviceRepository(store KVStore) DeviceRepository { return &deviceRepo{store: store} }

func (r *deviceRepo) Find(ctx context.Context) (string, error) {
	raw, err := r.store.Get(ctx, KeyDeviceID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *deviceRepo) Save(ctx context.Context, deviceID string) error {
	return r.store.Set(ctx, KeyDeviceID, []byte(deviceID))
}
