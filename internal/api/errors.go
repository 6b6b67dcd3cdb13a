package api

import (
	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier/internal/logger"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// handleError logs the failure, counts it and writes the JSON error response.
// errorType labels the error metric (validation, decode, timeout, system).
func (s *Server) handleError(c echo.Context, err error, message string, code int, errorType string) error {
	correlationID := c.Response().Header().Get(echo.HeaderXRequestID)
	resp := NewErrorResponse(err, message, code, correlationID)

	log := GetLogger().WithContext(c.Request().Context())
	fields := []logger.Field{
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Path()),
		logger.String("method", c.Request().Method),
		logger.String("error_type", errorType),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= 500 {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	if s.metricsEnabled() {
		s.metrics.HTTP.RecordHTTPRequestError(c.Request().Method, c.Path(), errorType)
	}

	return c.JSON(code, resp)
}
