package worker

// dlq.go: dead letter notifications
// Queued requests dropped after the retry ceiling are already persisted by
// the offline queue. This worker makes the drop visible: a structured log
// line, an optional mirror on a Redis list (dlq:offline_queue) for
// back-office monitoring, and an optional alert email.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dutyfreepos/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix         = "dlq:"
	QueueOfflineSync  = "offline_queue"
	deadLetterBacklog = 64
)

// AlertSender delivers a plain-text alert (implemented by infra.Mailer).
type AlertSender interface {
	SendAlert(subject, body string) error
}

// DLQEntry is what gets mirrored to Redis for monitoring.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	DeviceID      string          `json:"device_id"`
	RequestID     string          `json:"request_id"`
	Method        string          `json:"method"`
	Endpoint      string          `json:"endpoint"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

type DeadLetterNotifierConfig struct {
	DeviceID string
	Mailer   AlertSender   // nil disables email
	RDB      *redis.Client // nil disables the Redis mirror
}

// DeadLetterNotifier fans dead letters out without ever blocking a replay.
type DeadLetterNotifier struct {
	ch       chan model.DeadLetter
	deviceID string
	mailer   AlertSender
	rdb      *redis.Client
}

func NewDeadLetterNotifier(cfg DeadLetterNotifierConfig) *DeadLetterNotifier {
	return &DeadLetterNotifier{
		ch:       make(chan model.DeadLetter, deadLetterBacklog),
		deviceID: cfg.DeviceID,
		mailer:   cfg.Mailer,
		rdb:      cfg.RDB,
	}
}

// Notify hands dl to the worker. When the backlog is full the notification
// is dropped; the dead letter itself is already persisted.
func (n *DeadLetterNotifier) Notify(dl model.DeadLetter) {
	select {
	case n.ch <- dl:
	default:
		log.Warn().Str("request_id", dl.Request.ID).Msg("dlq: notification backlog full, skipping alert")
	}
}

// Start launches the consuming goroutine.
func (n *DeadLetterNotifier) Start(ctx context.Context) {
	go n.Run(ctx)
}

// Run consumes notifications until ctx is cancelled.
func (n *DeadLetterNotifier) Run(ctx context.Context) {
	log.Info().Msg("dlq: notifier started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("dlq: notifier shutting down")
			return
		case dl := <-n.ch:
			n.process(ctx, dl)
		}
	}
}

func (n *DeadLetterNotifier) process(ctx context.Context, dl model.DeadLetter) {
	log.Warn().
		Str("request_id", dl.Request.ID).
		Str("method", dl.Request.Method).
		Str("endpoint", dl.Request.Endpoint).
		Int("attempts", dl.Attempts).
		Str("reason", dl.Reason).
		Msg("dlq: queued request dropped")

	if n.rdb != nil {
		n.mirror(ctx, dl)
	}
	if n.mailer != nil {
		subject, body := alertMessage(n.deviceID, dl)
		if err := n.mailer.SendAlert(subject, body); err != nil {
			log.Error().Err(err).Str("request_id", dl.Request.ID).Msg("dlq: failed to send alert email")
		}
	}
}

func (n *DeadLetterNotifier) mirror(ctx context.Context, dl model.DeadLetter) {
	data, err := json.Marshal(toDLQEntry(n.deviceID, dl))
	if err != nil {
		log.Error().Err(err).Msg("dlq: failed to marshal entry")
		return
	}
	key := DLQPrefix + QueueOfflineSync
	if err := n.rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: failed to push to DLQ")
	}
}

// DLQLength returns the number of mirrored entries, for monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+QueueOfflineSync).Result()
}

func toDLQEntry(deviceID string, dl model.DeadLetter) DLQEntry {
	return DLQEntry{
		OriginalQueue: QueueOfflineSync,
		DeviceID:      deviceID,
		RequestID:     dl.Request.ID,
		Method:        dl.Request.Method,
		Endpoint:      dl.Request.Endpoint,
		Payload:       dl.Request.Body,
		Reason:        dl.Reason,
		FailedAt:      dl.FailedAt.UTC().Format(time.RFC3339),
		Attempts:      dl.Attempts,
	}
}

func alertMessage(deviceID string, dl model.DeadLetter) (string, string) {
	subject := fmt.Sprintf("[POS %s] queued request dropped: %s %s", shortID(deviceID), dl.Request.Method, dl.Request.Endpoint)

	var b strings.Builder
	fmt.Fprintf(&b, "Device:     %s\n", deviceID)
	fmt.Fprintf(&b, "Request:    %s\n", dl.Request.ID)
	fmt.Fprintf(&b, "Endpoint:   %s %s\n", dl.Request.Method, dl.Request.Endpoint)
	fmt.Fprintf(&b, "Enqueued:   %s\n", dl.Request.EnqueuedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Dropped:    %s\n", dl.FailedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Attempts:   %d\n", dl.Attempts)
	fmt.Fprintf(&b, "Reason:     %s\n\n", dl.Reason)
	b.WriteString("Body:\n")
	b.Write(dl.Request.Body)
	b.WriteString("\n")
	return subject, b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
