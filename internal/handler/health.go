package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/infra"
	"dutyfreepos/internal/repository"

	"github.com/gin-gonic/gin"
)

// QueueStatuser reports queue and connectivity state.
type QueueStatuser interface {
	Status(ctx context.Context) (dto.QueueStatusResponse, error)
}

// Health reports whether the terminal agent itself works. Being offline is
// a normal operating mode and does not make the agent unhealthy; an
// unreadable local store does.
func Health(store repository.KVStore, queue QueueStatuser, cb *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		storeStatus := "ok"
		if _, err := store.Get(ctx, repository.KeyDeviceID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			storeStatus = "error"
		}

		resp := dto.HealthResponse{Store: storeStatus, Breaker: cb.State().String()}
		if status, err := queue.Status(ctx); err == nil {
			resp.IsOnline = status.IsOnline
			resp.QueueLength = status.QueueLength
			resp.FailedCount = status.FailedCount
		} else {
			resp.Store = "error"
		}

		code := http.StatusOK
		if resp.Store != "ok" {
			code = http.StatusServiceUnavailable
		}
		resp.OK = code == http.StatusOK
		c.JSON(code, resp)
	}
}
