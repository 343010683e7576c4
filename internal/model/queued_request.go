package model

import (
	"encoding/json"
	"time"
)

// Body keys stamped on every queued payload so the server can order and
// de-duplicate late arrivals per terminal.
const (
	BodyDeviceID         = "device_id"
	BodyOfflineCreatedAt = "offline_created_at"
)

// QueuedRequest is a write that could not reach the network.
// Body is always a JSON object carrying device_id and offline_created_at.
type QueuedRequest struct {
	ID         string          `json:"id"`
	Endpoint   string          `json:"endpoint"`
	Method     string          `json:"method"`
	Body       json.RawMessage `json:"body"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Retries    int             `json:"retries"`
}

// DeadLetter keeps a queued request that exhausted its retries so the
// operator can see what failed to sync.
type DeadLetter struct {
	Request    QueuedRequest `json:"request"`
	Reason     string        `json:"reason"`
	LastStatus int           `json:"last_status,omitempty"`
	FailedAt   time.Time     `json:"failed_at"`
	Attempts   int           `json:"attempts"`
}
