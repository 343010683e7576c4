package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/model"

	"github.com/gin-gonic/gin"
)

// OfflineQueue is the queue surface exposed to the dashboard
// (implemented by service.OfflineQueue).
type OfflineQueue interface {
	Enqueue(ctx context.Context, endpoint, method string, body json.RawMessage) (string, error)
	Replay(ctx context.Context) (dto.ReplayReport, error)
	Status(ctx context.Context) (dto.QueueStatusResponse, error)
	DeadLetters(ctx context.Context) ([]model.DeadLetter, error)
	AcknowledgeDeadLetters(ctx context.Context) (int, error)
}

// ConnectivityHinter takes browser online/offline signals
// (implemented by worker.ConnectivityMonitor).
type ConnectivityHinter interface {
	Hint(ctx context.Context, online bool) bool
}

type QueueHandler struct {
	queue   OfflineQueue
	monitor ConnectivityHinter
}

func NewQueueHandler(queue OfflineQueue, monitor ConnectivityHinter) *QueueHandler {
	return &QueueHandler{queue: queue, monitor: monitor}
}

// Enqueue godoc
// @Summary Persists a write for later replay
// @Description device_id and offline_created_at are stamped on the body.
// @Tags queue
// @Accept json
// @Produce json
// @Param body body dto.EnqueueRequest true "Request to queue"
// @Success 202 {object} dto.EnqueueResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/queue [post]
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueRequest
	if !bindAndValidate(c, &req) {
		return
	}
	id, err := h.queue.Enqueue(c.Request.Context(), req.Endpoint, req.Method, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.EnqueueResponse{RequestID: id})
}

// Replay godoc
// @Summary Replays the offline queue now
// @Description A call made while a pass is running returns skipped=true.
// @Tags queue
// @Produce json
// @Success 200 {object} dto.ReplayReport
// @Router /v1/queue/replay [post]
func (h *QueueHandler) Replay(c *gin.Context) {
	report, err := h.queue.Replay(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Status godoc
// @Summary Connectivity, queue length, device identity and failed count
// @Tags queue
// @Produce json
// @Success 200 {object} dto.QueueStatusResponse
// @Router /v1/queue/status [get]
func (h *QueueHandler) Status(c *gin.Context) {
	status, err := h.queue.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// DeadLetters godoc
// @Summary Lists queued requests dropped after the retry ceiling
// @Tags queue
// @Produce json
// @Success 200 {object} dto.DeadLettersResponse
// @Router /v1/queue/dead-letters [get]
func (h *QueueHandler) DeadLetters(c *gin.Context) {
	letters, err := h.queue.DeadLetters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if letters == nil {
		letters = []model.DeadLetter{}
	}
	c.JSON(http.StatusOK, dto.DeadLettersResponse{Data: letters, Total: len(letters)})
}

// AcknowledgeDeadLetters godoc
// @Summary Clears the dead letters once a supervisor has reviewed them
// @Tags queue
// @Produce json
// @Success 200 {object} dto.AcknowledgeResponse
// @Router /v1/queue/dead-letters [delete]
func (h *QueueHandler) AcknowledgeDeadLetters(c *gin.Context) {
	n, err := h.queue.AcknowledgeDeadLetters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AcknowledgeResponse{Cleared: n})
}

// Hint godoc
// @Summary Forwards a browser online/offline event
// @Description Online hints are verified with a health probe before they count.
// @Tags connectivity
// @Accept json
// @Produce json
// @Param body body dto.ConnectivityHintRequest true "Hint"
// @Success 200 {object} dto.ConnectivityResponse
// @Router /v1/connectivity/hint [post]
func (h *QueueHandler) Hint(c *gin.Context) {
	var req dto.ConnectivityHintRequest
	if !bindAndValidate(c, &req) {
		return
	}
	online := h.monitor.Hint(c.Request.Context(), *req.Online)
	c.JSON(http.StatusOK, dto.ConnectivityResponse{IsOnline: online})
}
