package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_ServesRegisteredCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Registry())

	m.Classifier.RecordInference("MobileNetV2", 10*time.Millisecond, nil)
	m.MQTT.UpdateConnectionStatus(true)
	m.HTTP.RecordHTTPRequest(http.MethodGet, "/api/v1/health", http.StatusOK, time.Millisecond)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `imageclassifier_inferences_total{model="MobileNetV2",status="success"} 1`)
	assert.Contains(t, text, "imageclassifier_mqtt_connection_status 1")
	assert.Contains(t, text, "imageclassifier_http_requests_total")
	assert.Contains(t, text, "go_goroutines")
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a, err := NewMetrics()
	require.NoError(t, err)
	b, err := NewMetrics()
	require.NoError(t, err)
	assert.NotSame(t, a.Registry(), b.Registry())
}
