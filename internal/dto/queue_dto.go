package dto

import (
	"encoding/json"

	"dutyfreepos/internal/model"
)

type EnqueueRequest struct {
	Endpoint string          `json:"endpoint" validate:"required,startswith=/"`
	Method   string          `json:"method"   validate:"required,oneof=POST PUT PATCH DELETE"`
	Body     json.RawMessage `json:"body"`
}

type ConnectivityHintRequest struct {
	Online *bool `json:"online" validate:"required"`
}

type EnqueueResponse struct {
	RequestID string `json:"request_id"`
}

// SubmitResult is what a write routed through the offline queue produced:
// either the server answer or a pending queue entry.
type SubmitResult struct {
	Queued    bool            `json:"queued"`
	RequestID string          `json:"request_id,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

type QueueStatusResponse struct {
	IsOnline    bool   `json:"is_online"`
	QueueLength int    `json:"queue_length"`
	DeviceID    string `json:"device_id"`
	FailedCount int    `json:"failed_count"`
}

type ReplayReport struct {
	Skipped      bool `json:"skipped"`
	Attempted    int  `json:"attempted"`
	Succeeded    int  `json:"succeeded"`
	Failed       int  `json:"failed"`
	DeadLettered int  `json:"dead_lettered"`
	Remaining    int  `json:"remaining"`
}

type DeadLettersResponse struct {
	Data  []model.DeadLetter `json:"data"`
	Total int                `json:"total"`
}

type ConnectivityResponse struct {
	IsOnline bool `json:"is_online"`
}

type AcknowledgeResponse struct {
	Cleared int `json:"cleared"`
}

type HealthResponse struct {
	OK          bool   `json:"ok"`
	Store       string `json:"store"`
	IsOnline    bool   `json:"is_online"`
	Breaker     string `json:"breaker"`
	QueueLength int    `json:"queue_length"`
	FailedCount int    `json:"failed_count"`
}
