package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// Notice is the bias warning shown alongside results.
type Notice struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ModelsResponse lists the supported models.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
	Notice  Notice   `json:"notice"`
}

// ResultsResponse is a dispatcher state with its rendered lines.
type ResultsResponse struct {
	classifier.State
	Lines  []string `json:"lines"`
	Cached bool     `json:"cached"`
}

func newResultsResponse(state classifier.State) ResultsResponse {
	return ResultsResponse{
		State: state,
		Lines: classifier.RenderResults(state, len(state.Models) > 1),
	}
}

// healthCheck handles GET /api/v1/health
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.settings.Version,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// listModels handles GET /api/v1/models
func (s *Server) listModels(c echo.Context) error {
	resp := ModelsResponse{
		Default: s.defaultModel.String(),
		Notice:  Notice{Title: classifier.BiasNoticeTitle, Text: classifier.BiasNotice},
	}
	for _, m := range classifier.AllModelTypes() {
		resp.Models = append(resp.Models, m.String())
	}
	return c.JSON(http.StatusOK, resp)
}

// getResults handles GET /api/v1/results
func (s *Server) getResults(c echo.Context) error {
	return c.JSON(http.StatusOK, newResultsResponse(s.dispatcher.Snapshot()))
}

// resetResults handles DELETE /api/v1/results
func (s *Server) resetResults(c echo.Context) error {
	s.dispatcher.Reset()
	return c.JSON(http.StatusOK, newResultsResponse(s.dispatcher.Snapshot()))
}

// classify handles POST /api/v1/classify
func (s *Server) classify(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return s.handleError(c, err, "multipart field 'image' is required", http.StatusBadRequest, "validation")
	}
	data, err := readFormFile(fh)
	if err != nil {
		return s.handleError(c, err, "failed to read uploaded image", http.StatusBadRequest, "validation")
	}
	if s.metricsEnabled() {
		s.metrics.HTTP.RecordUploadSize(int64(len(data)))
	}

	model := s.defaultModel
	if v := c.FormValue("model"); v != "" {
		if model, err = classifier.ParseModelType(v); err != nil {
			return s.handleError(c, err, "invalid model", http.StatusBadRequest, "validation")
		}
	}
	compare := s.settings.Classifier.Compare
	if v := c.FormValue("compare"); v != "" {
		if compare, err = strconv.ParseBool(v); err != nil {
			return s.handleError(c, err, "invalid compare flag", http.StatusBadRequest, "validation")
		}
	}

	key := cacheKey(data, classifier.EffectiveModels(model, compare))
	if resp, ok := s.cachedResult(key); ok {
		// a new image was selected, so observers must not keep seeing the previous one
		s.dispatcher.Reset()
		return c.JSON(http.StatusOK, resp)
	}

	img, err := classifier.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return s.handleError(c, err, "unsupported or corrupt image", http.StatusBadRequest, "decode")
	}

	gen := s.dispatcher.Classify(img, model, compare)

	ctx := c.Request().Context()
	if timeout := s.settings.WebServer.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	state, err := s.dispatcher.Wait(ctx, gen)
	switch {
	case err == nil:
	case errors.Is(err, classifier.ErrSuperseded):
		return s.handleError(c, err, "request superseded by a newer classification", http.StatusConflict, "superseded")
	case errors.Is(err, classifier.ErrClosed):
		return s.handleError(c, err, "classifier is shutting down", http.StatusServiceUnavailable, "system")
	case errors.Is(err, context.DeadlineExceeded):
		return s.handleError(c, err, "classification did not finish in time", http.StatusGatewayTimeout, "timeout")
	default:
		return s.handleError(c, err, "classification aborted", http.StatusInternalServerError, "system")
	}

	GetLogger().WithContext(c.Request().Context()).Debug("classification finished",
		logger.String("request_id", state.RequestID),
		logger.Uint64("generation", state.Generation))

	resp := newResultsResponse(state)
	if s.results != nil && !state.HasFailures() {
		s.results.Set(key, resp, cache.DefaultExpiration)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) cachedResult(key string) (ResultsResponse, bool) {
	if s.results == nil {
		return ResultsResponse{}, false
	}
	v, ok := s.results.Get(key)
	if s.metricsEnabled() {
		s.metrics.HTTP.RecordCacheLookup(ok)
	}
	if !ok {
		return ResultsResponse{}, false
	}
	resp := v.(ResultsResponse)
	resp.Cached = true
	return resp, true
}

// cacheKey identifies an image and effective model set.
func cacheKey(data []byte, models []classifier.ModelType) string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.String()
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16) + "|" + strings.Join(names, ",")
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
