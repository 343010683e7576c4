package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/model"
	"dutyfreepos/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ReplayOrder selects how a replay pass walks the queue.
type ReplayOrder string

const (
	// ReplayFIFO attempts oldest first; a failed entry goes to the back
	// with its retry counter incremented.
	ReplayFIFO ReplayOrder = "fifo"
	// ReplayReverse scans newest first and updates failed entries in place.
	ReplayReverse ReplayOrder = "reverse"
)

// DefaultMaxRetries is the retry ceiling of a queued request.
const DefaultMaxRetries = 3

// Sender issues a raw request against the remote API. A nil error means 2xx.
type Sender interface {
	Send(ctx context.Context, method, endpoint string, body []byte) ([]byte, error)
}

// DeadLetterSink is told about every request dropped after the retry ceiling.
// Notify must not block.
type DeadLetterSink interface {
	Notify(dl model.DeadLetter)
}

type OfflineQueueConfig struct {
	MaxRetries int
	Order      ReplayOrder
	Clock      clockwork.Clock
	Notifier   DeadLetterSink
}

// OfflineQueue makes a best-effort guarantee that writes issued while
// offline are not lost: they are persisted, then replayed once connectivity
// is confirmed.
type OfflineQueue struct {
	repo        repository.QueueRepository
	deadLetters repository.DeadLetterRepository
	device      *DeviceService
	sender      Sender
	clock       clockwork.Clock
	maxRetries  int
	order       ReplayOrder
	notifier    DeadLetterSink

	// mu serialises read-modify-write of the persisted queue and dead letters.
	mu        sync.Mutex
	replaying atomic.Bool
	online    atomic.Bool

	queueLen    atomic.Int64
	failedCount atomic.Int64
}

func NewOfflineQueue(
	repo repository.QueueRepository,
	deadLetters repository.DeadLetterRepository,
	device *DeviceService,
	sender Sender,
	cfg OfflineQueueConfig,
) *OfflineQueue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Order != ReplayReverse {
		cfg.Order = ReplayFIFO
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &OfflineQueue{
		repo:        repo,
		deadLetters: deadLetters,
		device:      device,
		sender:      sender,
		clock:       cfg.Clock,
		maxRetries:  cfg.MaxRetries,
		order:       cfg.Order,
		notifier:    cfg.Notifier,
	}
}

// Load reloads the persisted queue at startup so the counters reflect what
// survived the last run.
func (q *OfflineQueue) Load(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.repo.Load(ctx)
	if err != nil {
		return err
	}
	dead, err := q.deadLetters.List(ctx)
	if err != nil {
		return err
	}
	q.queueLen.Store(int64(len(entries)))
	q.failedCount.Store(int64(len(dead)))

	log.Info().
		Int("pending", len(entries)).
		Int("dead_letters", len(dead)).
		Msg("offline_queue: loaded")
	return nil
}

// ── Enqueue ───────────────────────────────────────────────────────────────────

// Enqueue appends a write durably and returns its id immediately so the
// caller can proceed optimistically. body must be a JSON object (or empty).
func (q *OfflineQueue) Enqueue(ctx context.Context, endpoint, method string, body json.RawMessage) (string, error) {
	deviceID, err := q.device.ID(ctx)
	if err != nil {
		return "", err
	}

	now := q.clock.Now().UTC()
	enriched, err := enrichBody(body, deviceID, now)
	if err != nil {
		return "", err
	}

	entry := model.QueuedRequest{
		ID:         uuid.NewString(),
		Endpoint:   endpoint,
		Method:     strings.ToUpper(method),
		Body:       enriched,
		EnqueuedAt: now,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.repo.Load(ctx)
	if err != nil {
		return "", err
	}
	entries = append(entries, entry)
	if err := q.repo.Save(ctx, entries); err != nil {
		return "", err
	}
	q.queueLen.Store(int64(len(entries)))

	log.Info().
		Str("request_id", entry.ID).
		Str("method", entry.Method).
		Str("endpoint", entry.Endpoint).
		Int("queue_length", len(entries)).
		Msg("offline_queue: request enqueued")
	return entry.ID, nil
}

// enrichBody stamps device_id and offline_created_at on a JSON object body.
// An offline_created_at already set by the caller is kept: it is closer to
// when the action actually happened.
func enrichBody(body json.RawMessage, deviceID string, now time.Time) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
			return nil, apierror.NewValidation(map[string]string{"body": "must be a JSON object"})
		}
	}

	id, _ := json.Marshal(deviceID)
	fields[model.BodyDeviceID] = id
	if _, ok := fields[model.BodyOfflineCreatedAt]; !ok {
		ts, _ := json.Marshal(now.Format(time.RFC3339Nano))
		fields[model.BodyOfflineCreatedAt] = ts
	}
	return json.Marshal(fields)
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit tries the network first when online and falls back to the queue
// on transport failure. A server rejection is returned as is: replaying a
// request the server refused would only burn retries.
func (q *OfflineQueue) Submit(ctx context.Context, endpoint, method string, body json.RawMessage) (dto.SubmitResult, error) {
	if q.IsOnline() {
		resp, err := q.sender.Send(ctx, strings.ToUpper(method), endpoint, body)
		if err == nil {
			result := dto.SubmitResult{}
			if json.Valid(resp) {
				result.Response = resp
			}
			return result, nil
		}
		if !apierror.IsTransport(err) {
			return dto.SubmitResult{}, err
		}
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("offline_queue: direct call failed, queueing")
	}

	id, err := q.Enqueue(ctx, endpoint, method, body)
	if err != nil {
		return dto.SubmitResult{}, err
	}
	return dto.SubmitResult{Queued: true, RequestID: id}, nil
}

// ── Replay ────────────────────────────────────────────────────────────────────

// Replay attempts every queued entry once. It is single-flight: a call made
// while a pass is running returns a skipped report without any HTTP call.
// The working set is captured at start; entries enqueued meanwhile wait for
// the next pass.
func (q *OfflineQueue) Replay(ctx context.Context) (dto.ReplayReport, error) {
	if !q.replaying.CompareAndSwap(false, true) {
		log.Debug().Msg("offline_queue: replay already in progress, skipping")
		return dto.ReplayReport{Skipped: true, Remaining: q.Len()}, nil
	}
	defer q.replaying.Store(false)

	q.mu.Lock()
	entries, err := q.repo.Load(ctx)
	q.mu.Unlock()
	if err != nil {
		return dto.ReplayReport{}, err
	}

	var report dto.ReplayReport
	if len(entries) == 0 {
		return report, nil
	}

	batch := make([]model.QueuedRequest, len(entries))
	copy(batch, entries)
	if q.order == ReplayReverse {
		for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
	}

	log.Info().Int("count", len(batch)).Str("order", string(q.order)).Msg("offline_queue: replay started")

	for _, entry := range batch {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		_, sendErr := q.sender.Send(ctx, entry.Method, entry.Endpoint, entry.Body)
		if sendErr != nil && ctx.Err() != nil {
			// Shutdown mid-request: not the entry's fault, keep its retries.
			report.Attempted--
			break
		}
		if err := q.settle(ctx, entry.ID, sendErr, &report); err != nil {
			return report, err
		}
	}

	report.Remaining = q.Len()
	log.Info().
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("dead_lettered", report.DeadLettered).
		Int("remaining", report.Remaining).
		Msg("offline_queue: replay finished")
	return report, nil
}

// settle applies the outcome of one attempt to the live queue.
func (q *OfflineQueue) settle(ctx context.Context, id string, sendErr error, report *dto.ReplayReport) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.repo.Load(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	entry := entries[idx]
	rest := append(entries[:idx:idx], entries[idx+1:]...)

	if sendErr == nil {
		report.Succeeded++
		log.Info().Str("request_id", id).Str("endpoint", entry.Endpoint).Msg("offline_queue: request replayed")
		return q.save(ctx, rest)
	}

	report.Failed++
	entry.Retries++

	if entry.Retries >= q.maxRetries {
		report.DeadLettered++
		dl := model.DeadLetter{
			Request:    entry,
			Reason:     fmt.Sprintf("%v: %v", apierror.ErrQueueExhausted, sendErr),
			LastStatus: statusOf(sendErr),
			FailedAt:   q.clock.Now().UTC(),
			Attempts:   entry.Retries,
		}
		if err := q.deadLetters.Append(ctx, dl); err != nil {
			return err
		}
		q.failedCount.Add(1)
		log.Error().
			Err(sendErr).
			Str("request_id", id).
			Str("endpoint", entry.Endpoint).
			Int("attempts", entry.Retries).
			Msg("offline_queue: max retries exceeded, moved to dead letters")
		if q.notifier != nil {
			q.notifier.Notify(dl)
		}
		return q.save(ctx, rest)
	}

	log.Warn().
		Err(sendErr).
		Str("request_id", id).
		Int("retries", entry.Retries).
		Msg("offline_queue: replay attempt failed")

	if q.order == ReplayFIFO {
		return q.save(ctx, append(rest, entry))
	}
	entries[idx] = entry
	return q.save(ctx, entries)
}

// save must be called under q.mu.
func (q *OfflineQueue) save(ctx context.Context, entries []model.QueuedRequest) error {
	if err := q.repo.Save(ctx, entries); err != nil {
		return err
	}
	q.queueLen.Store(int64(len(entries)))
	return nil
}

func statusOf(err error) int {
	var se *apierror.ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// ── Status & dead letters ─────────────────────────────────────────────────────

func (q *OfflineQueue) Status(ctx context.Context) (dto.QueueStatusResponse, error) {
	deviceID, err := q.device.ID(ctx)
	if err != nil {
		return dto.QueueStatusResponse{}, err
	}
	return dto.QueueStatusResponse{
		IsOnline:    q.IsOnline(),
		QueueLength: q.Len(),
		DeviceID:    deviceID,
		FailedCount: int(q.failedCount.Load()),
	}, nil
}

// Len is the number of entries awaiting replay.
func (q *OfflineQueue) Len() int { return int(q.queueLen.Load()) }

// Pending returns a snapshot of the queue, oldest first.
func (q *OfflineQueue) Pending(ctx context.Context) ([]model.QueuedRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repo.Load(ctx)
}

func (q *OfflineQueue) DeadLetters(ctx context.Context) ([]model.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deadLetters.List(ctx)
}

// AcknowledgeDeadLetters clears the "N items failed to sync" indicator.
func (q *OfflineQueue) AcknowledgeDeadLetters(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.deadLetters.Clear(ctx)
	if err != nil {
		return 0, err
	}
	q.failedCount.Store(0)
	log.Info().Int("count", n).Msg("offline_queue: dead letters acknowledged")
	return n, nil
}

// ── Connectivity ──────────────────────────────────────────────────────────────

func (q *OfflineQueue) IsOnline() bool { return q.online.Load() }

// SetOnline records confirmed connectivity and reports whether it changed.
// Only the connectivity monitor calls it.
func (q *OfflineQueue) SetOnline(online bool) bool {
	return q.online.Swap(online) != online
}
