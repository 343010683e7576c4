package handler

import (
	"net/http"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := dto.Validate(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.Body(err))
		return false
	}
	return true
}

// respondError maps err through the error taxonomy. Server messages are
// passed through verbatim; anything unclassified is logged and hidden.
func respondError(c *gin.Context, err error) {
	status := apierror.HTTPStatus(err)
	if status == http.StatusInternalServerError && !apierror.IsServer(err) {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("handler: internal error")
		c.JSON(status, apierror.New("internal server error"))
		return
	}
	c.JSON(status, apierror.Body(err))
}
