package classifier

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gatedClassifier blocks every call until the test releases an outcome.
type gatedClassifier struct {
	started  chan struct{}
	outcomes chan outcome
	closed   atomic.Bool
}

func newGated() *gatedClassifier {
	return &gatedClassifier{
		started:  make(chan struct{}, 8),
		outcomes: make(chan outcome),
	}
}

func (g *gatedClassifier) Classify(ctx context.Context, _ image.Image) ([]Prediction, error) {
	g.started <- struct{}{}
	select {
	case o := <-g.outcomes:
		return o.preds, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedClassifier) Close() error {
	g.closed.Store(true)
	return nil
}

// awaitStart waits until a call to the classifier is blocked.
func (g *gatedClassifier) awaitStart(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("classifier was not called")
	}
}

func (g *gatedClassifier) succeed(t *testing.T, label string, confidence float32) {
	t.Helper()
	g.release(t, outcome{preds: []Prediction{{Label: label, Confidence: confidence}}})
}

func (g *gatedClassifier) fail(t *testing.T, err error) {
	t.Helper()
	g.release(t, outcome{err: err})
}

func (g *gatedClassifier) release(t *testing.T, o outcome) {
	t.Helper()
	select {
	case g.outcomes <- o:
	case <-time.After(5 * time.Second):
		t.Fatal("no classification waiting for release")
	}
}

// staticClassifier returns fixed predictions immediately.
type staticClassifier struct {
	preds    []Prediction
	err      error
	panicMsg string
	closeErr error
	calls    atomic.Int32
}

func (s *staticClassifier) Classify(context.Context, image.Image) ([]Prediction, error) {
	s.calls.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.preds, s.err
}

func (s *staticClassifier) Close() error { return s.closeErr }

// blockingClassifier ignores everything but context cancellation.
type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _ image.Image) ([]Prediction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingClassifier) Close() error { return nil }

type recordingMetrics struct {
	mu         sync.Mutex
	inferences map[string]int
	failures   map[string]int
	stale      map[string]int
	inFlight   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		inferences: make(map[string]int),
		failures:   make(map[string]int),
		stale:      make(map[string]int),
	}
}

func (r *recordingMetrics) RecordInference(model string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inferences[model]++
	if err != nil {
		r.failures[model]++
	}
}

func (r *recordingMetrics) RecordStaleResult(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[model]++
}

func (r *recordingMetrics) SetInFlight(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = n
}

func (r *recordingMetrics) staleCount(model string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale[model]
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func newTestRegistry(t *testing.T, a, b Classifier) *Registry {
	t.Helper()
	r, err := NewRegistryFromClassifiers(map[ModelType]Classifier{MobileNetV2: a, ResNet50: b})
	require.NoError(t, err)
	return r
}

// nextState reads updates until one satisfies cond.
func nextState(t *testing.T, updates <-chan State, cond func(State) bool) State {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-updates:
			require.True(t, ok, "subscription closed")
			if cond(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for state")
			return State{}
		}
	}
}
