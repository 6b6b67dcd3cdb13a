package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/datastore"
)

// maxHistoryLimit bounds a single history page.
const maxHistoryLimit = 500

// HistoryResponse is a page of stored classifications.
type HistoryResponse struct {
	Classifications []datastore.Classification `json:"classifications"`
	Count           int                        `json:"count"`
	Limit           int                        `json:"limit"`
}

// listHistory handles GET /api/v1/history
func (s *Server) listHistory(c echo.Context) error {
	limit := s.settings.History.Limit
	if limit <= 0 {
		limit = conf.DefaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return s.handleError(c, err, "limit must be a positive integer", http.StatusBadRequest, "validation")
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.List(c.Request().Context(), limit)
	if err != nil {
		return s.handleError(c, err, "Failed to read classification history", http.StatusInternalServerError, "system")
	}
	if records == nil {
		records = []datastore.Classification{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{
		Classifications: records,
		Count:           len(records),
		Limit:           limit,
	})
}

// getHistory handles GET /api/v1/history/:requestID
func (s *Server) getHistory(c echo.Context) error {
	record, err := s.history.Get(c.Request().Context(), c.Param("requestID"))
	if datastore.IsNotFound(err) {
		return s.handleError(c, err, "Classification not found", http.StatusNotFound, "not_found")
	}
	if err != nil {
		return s.handleError(c, err, "Failed to read classification history", http.StatusInternalServerError, "system")
	}
	return c.JSON(http.StatusOK, record)
}
