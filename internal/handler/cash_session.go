package handler

import (
	"net/http"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/service"

	"github.com/gin-gonic/gin"
)

type CashSessionHandler struct{ svc service.CashSessionService }

func NewCashSessionHandler(svc service.CashSessionService) *CashSessionHandler {
	return &CashSessionHandler{svc: svc}
}

// ListRegisters godoc
// @Summary Lists the active cash registers the operator may open
// @Tags cash-sessions
// @Produce json
// @Param point_of_sale_id query string false "Operator's point of sale"
// @Success 200 {object} dto.RegistersResponse
// @Failure 503 {object} apierror.APIError
// @Router /v1/registers [get]
func (h *CashSessionHandler) ListRegisters(c *gin.Context) {
	registers, err := h.svc.ListRegisters(c.Request.Context(), c.Query("point_of_sale_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegistersResponse{Data: registers, Total: len(registers)})
}

// Current godoc
// @Summary Returns the operator's open cash session, if any
// @Tags cash-sessions
// @Produce json
// @Param user_id query string true "Operator ID"
// @Success 200 {object} dto.CurrentSessionResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/cash-sessions/current [get]
func (h *CashSessionHandler) Current(c *gin.Context) {
	userID := c.Query("user_id")
	session, err := h.svc.CurrentSession(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CurrentSessionResponse{
		Session: session,
		State:   string(h.svc.State(userID)),
	})
}

// Open godoc
// @Summary Opens a cash session on a register
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Param body body dto.OpenSessionRequest true "Opening float"
// @Success 201 {object} model.CashSession
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Failure 503 {object} apierror.APIError
// @Router /v1/cash-sessions [post]
func (h *CashSessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	session, err := h.svc.Open(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ClosingSummary godoc
// @Summary Fresh session detail and stats for the closing screen
// @Tags cash-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ClosingSummaryResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash-sessions/{id}/closing [get]
func (h *CashSessionHandler) ClosingSummary(c *gin.Context) {
	resp, err := h.svc.ClosingSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PreviewVariance godoc
// @Summary Computes the variance for a count without closing
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param body body dto.VariancePreviewRequest true "Counted cash"
// @Success 200 {object} dto.VarianceResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/cash-sessions/{id}/variance [post]
func (h *CashSessionHandler) PreviewVariance(c *gin.Context) {
	var req dto.VariancePreviewRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.PreviewVariance(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary Closes a cash session with the physical count
// @Description Never retried automatically; on failure the operator resubmits.
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param body body dto.CloseSessionRequest true "Physical count"
// @Success 200 {object} dto.CloseSessionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Failure 503 {object} apierror.APIError
// @Router /v1/cash-sessions/{id}/close [post]
func (h *CashSessionHandler) Close(c *gin.Context) {
	var req dto.CloseSessionRequest
	// Binding a partial body still reaches the service, which owns the
	// "counted_cash is mandatory" rule.
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordSale godoc
// @Summary Records a sale, queued for replay when offline
// @Tags sales
// @Accept json
// @Produce json
// @Param body body dto.SaleRequest true "Sale"
// @Success 201 {object} dto.SaleResponse
// @Success 202 {object} dto.SaleResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/sales [post]
func (h *CashSessionHandler) RecordSale(c *gin.Context) {
	var req dto.SaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordSale(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Queued {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}
