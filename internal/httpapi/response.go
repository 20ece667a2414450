package httpapi

import (
	"errors"
	"net/http"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/gin-gonic/gin"
)

// Resp is the envelope of every JSON response.
type Resp struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
}

const messageSuccess = "success"

// Error codes carried in Resp.ErrorCode.
const (
	codeOK         = 0
	codeBadRequest = 1
	codeNotFound   = 2
	codeConflict   = 3
	codeUpstream   = 4
	codeInternal   = 5
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Resp{ErrorCode: codeOK, Message: messageSuccess, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Resp{ErrorCode: codeOK, Message: messageSuccess, Data: data})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Resp{ErrorCode: codeBadRequest, Message: err.Error()})
}

// fail maps a service error onto a status code. data, when non-nil, is
// returned alongside the error message.
func fail(c *gin.Context, err error, data any) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.JSON(status, Resp{ErrorCode: code, Message: msg, Data: data})
}

func classify(err error) (int, int) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrCyclicDependency),
		errors.Is(err, domain.ErrUnknownDependency),
		errors.Is(err, domain.ErrEmptyHorizon):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrIntervalOverlap),
		errors.Is(err, domain.ErrPlanConflict),
		errors.Is(err, domain.ErrPlanNotDraft):
		return http.StatusConflict, codeConflict
	case errors.Is(err, intelligence.ErrUpstreamUnavailable):
		return http.StatusBadGateway, codeUpstream
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
