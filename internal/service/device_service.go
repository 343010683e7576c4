package service

import (
	"context"
	"fmt"
	"sync"

	"dutyfreepos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DeviceService owns the terminal identity: generated lazily on first use,
// persisted once, never regenerated.
type DeviceService struct {
	repo repository.DeviceRepository

	mu sync.Mutex
	id string
}

func NewDeviceService(repo repository.DeviceRepository) *DeviceService {
	return &DeviceService{repo: repo}
}

// ID returns the persisted device identity, creating it on first call.
func (s *DeviceService) ID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		return s.id, nil
	}

	id, err := s.repo.Find(ctx)
	if err != nil {
		return "", fmt.Errorf("device identity: load: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
		if err := s.repo.Save(ctx, id); err != nil {
			return "", fmt.Errorf("device identity: save: %w", err)
		}
		log.Info().Str("device_id", id).Msg("device identity created")
	}
	s.id = id
	return id, nil
}
