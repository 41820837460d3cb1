// Package handlers implements the HTTP endpoints of the assistant API.
//
// Every error leaves through fail(), which writes the ErrorResponse envelope
// and logs server-side failures with the request-scoped logger:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "busy",
//	  "message": "a request is already in progress"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bibleai/internal/http/middleware"
	"github.com/tbourn/bibleai/internal/quiz"
	"github.com/tbourn/bibleai/internal/services"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating logs.
	RequestID string `json:"request_id,omitempty"`
	// Stable code from errors.go.
	Code string `json:"code"`
	// Safe to show to users.
	Message string `json:"message"`
}

// fail aborts with an ErrorResponse; 5xx responses are logged.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps service and quiz errors to statuses and codes. Unknown errors
// become 500.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrInvalidSession),
		errors.Is(err, services.ErrInvalidPreferences),
		errors.Is(err, quiz.ErrOptionRange):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLong, err.Error())
	case errors.Is(err, services.ErrNotOnboarded):
		fail(c, http.StatusPreconditionRequired, ErrCodeNotOnboarded, err.Error())
	case errors.Is(err, services.ErrBusy):
		fail(c, http.StatusConflict, ErrCodeBusy, err.Error())
	case errors.Is(err, services.ErrQuizUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeQuizUnavailable, err.Error())
	case errors.Is(err, quiz.ErrTerminal),
		errors.Is(err, quiz.ErrNotPlaying),
		errors.Is(err, quiz.ErrAlreadyStarted),
		errors.Is(err, quiz.ErrNotRevealed):
		fail(c, http.StatusConflict, ErrCodeQuizState, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
