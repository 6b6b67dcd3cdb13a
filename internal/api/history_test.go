package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/imageclassifier/internal/datastore"
	"github.com/tphakala/imageclassifier/internal/errors"
)

type fakeHistory struct {
	records   []datastore.Classification
	lastLimit int
	listErr   error
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]datastore.Classification, error) {
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records[:min(limit, len(f.records))], nil
}

func (f *fakeHistory) Get(_ context.Context, requestID string) (*datastore.Classification, error) {
	for i := range f.records {
		if f.records[i].RequestID == requestID {
			return &f.records[i], nil
		}
	}
	return nil, errors.New(gorm.ErrRecordNotFound).Component("datastore").Category(errors.CategoryDatabase).Build()
}

func historyRecords() []datastore.Classification {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []datastore.Classification{
		{ID: 2, RequestID: "req-2", Generation: 2, CreatedAt: now.Add(time.Minute),
			Results: []datastore.Result{{Model: "ResNet50", Text: "zebra (95%)"}}},
		{ID: 1, RequestID: "req-1", Generation: 1, CreatedAt: now,
			Results: []datastore.Result{{Model: "MobileNetV2", Text: "tabby (58%)"}}},
	}
}

func TestHistory_DisabledWithoutStore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testSettings(), nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory_List(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.History.Limit = 25
	store := &fakeHistory{records: historyRecords()}
	env := newTestEnv(t, settings, nil, WithHistory(store))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, store.lastLimit)

	body := decode[HistoryResponse](t, rec)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Classifications, 2)
	assert.Equal(t, "req-2", body.Classifications[0].RequestID)
	assert.Equal(t, "zebra (95%)", body.Classifications[0].Results[0].Text)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=1", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[HistoryResponse](t, rec).Count)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=100000", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, store.lastLimit)
}

func TestHistory_ConfiguredLimitIsCapped(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.History.Limit = 10000
	store := &fakeHistory{records: historyRecords()}
	env := newTestEnv(t, settings, nil, WithHistory(store))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, store.lastLimit)
	assert.Equal(t, maxHistoryLimit, decode[HistoryResponse](t, rec).Limit)
}

func TestHistory_InvalidLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testSettings(), nil, WithHistory(&fakeHistory{}))

	for _, q := range []string{"0", "-3", "ten"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history?limit="+q, http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", q)
	}
}

func TestHistory_StoreFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testSettings(), nil, WithHistory(&fakeHistory{listErr: errors.NewStd("database is locked")}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to read classification history", body.Message)
}

func TestHistory_Get(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testSettings(), nil, WithHistory(&fakeHistory{records: historyRecords()}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history/req-1", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	record := decode[datastore.Classification](t, rec)
	assert.Equal(t, uint64(1), record.Generation)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/history/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemInfo(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testSettings(), nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/system", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[SystemInfo](t, rec)
	assert.Positive(t, info.NumCPU)
	assert.NotEmpty(t, info.OS)
	assert.Positive(t, info.MemoryTotal)
}
