package server

import (
	"log"
	"net/http"

	"taskflow/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

const (
	msgServerError   = "Server error"
	msgEmailDelivery = "Failed to send reset email"
)

// errorStatus maps a service error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	msg := errors.Message(err)
	switch {
	// Login and reset mismatches must look like bad input.
	case errors.Is(err, errors.ErrInvalidCredentials), errors.Is(err, errors.ErrInvalidResetCode):
		return http.StatusBadRequest, msg
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized, msg
	case errors.Is(err, errors.ErrValidationFailed), errors.Is(err, errors.ErrConflict):
		if msg == "" {
			msg = "Invalid request"
		}
		return http.StatusBadRequest, msg
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, msg
	case errors.Is(err, errors.ErrEmailDelivery):
		return http.StatusInternalServerError, msgEmailDelivery
	}
	return http.StatusInternalServerError, msgServerError
}

// respondError writes {"message"} and, in development, the internal error.
func (api *TaskAPI) respondError(ctx *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
	}
	body := gin.H{"message": msg}
	if api.cfg.Development() {
		body["error"] = err.Error()
	}
	ctx.AbortWithStatusJSON(status, body)
}

// bindError keeps domain validation errors raised while decoding and turns
// anything else into ErrBadRequest.
func bindError(err error) error {
	if errors.Is(err, errors.ErrValidationFailed) {
		return err
	}
	return errors.ErrBadRequest
}
