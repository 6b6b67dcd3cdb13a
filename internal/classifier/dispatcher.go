package classifier

import (
	"context"
	"fmt"
	"image"
	"maps"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

var (
	// ErrSuperseded is returned by Wait when a newer request or a reset replaced the awaited one.
	ErrSuperseded = errors.NewStd("classification superseded by a newer request")
	// ErrClosed is returned by Wait once the dispatcher has shut down.
	ErrClosed = errors.NewStd("dispatcher closed")
	// ErrNoPredictions is reported when a model returns an empty ranking.
	ErrNoPredictions = errors.NewStd("model returned no predictions")
	// ErrNilImage is reported for every model when Classify receives no image.
	ErrNilImage = errors.NewStd("no image supplied")
)

// State is an immutable snapshot of the dispatcher.
type State struct {
	Generation uint64               `json:"generation"`
	RequestID  string               `json:"request_id,omitempty"`
	Loading    bool                 `json:"loading"`
	Models     []ModelType          `json:"models"`
	Results    map[ModelType]string `json:"results"`
}

// Complete reports whether every model of the request has produced a result.
func (s State) Complete() bool {
	return !s.Loading && len(s.Models) > 0 && len(s.Results) == len(s.Models)
}

// MetricsRecorder receives dispatcher measurements.
type MetricsRecorder interface {
	RecordInference(model string, duration time.Duration, err error)
	RecordStaleResult(model string)
	SetInFlight(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordInference(string, time.Duration, error) {}
func (noopMetrics) RecordStaleResult(string)                     {}
func (noopMetrics) SetInFlight(int)                              {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds how long a model may take; 0 waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.timeout = max(0, d)
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(disp *Dispatcher) {
		if m != nil {
			disp.metrics = m
		}
	}
}

// Dispatcher runs the selected models for an image concurrently and
// aggregates their results. All state changes go through one mutex.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	metrics  MetricsRecorder

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	generation  uint64
	requestID   string
	loading     bool
	models      []ModelType
	results     map[ModelType]string
	inFlight    int
	subscribers map[uint64]chan State
	nextSubID   uint64
	closed      bool

	workers  sync.WaitGroup
	backends sync.WaitGroup
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry:    registry,
		metrics:     noopMetrics{},
		ctx:         ctx,
		cancel:      cancel,
		results:     make(map[ModelType]string),
		subscribers: make(map[uint64]chan State),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Classify starts classification of img. With compare set every model runs,
// otherwise only current. Previous results are cleared before any new result
// is written. It returns the generation of the new request.
func (d *Dispatcher) Classify(img image.Image, current ModelType, compare bool) uint64 {
	models := EffectiveModels(current, compare)

	d.mu.Lock()
	if d.closed {
		gen := d.generation
		d.mu.Unlock()
		GetLogger().Warn("Classify called after dispatcher was closed")
		return gen
	}

	d.generation++
	gen := d.generation
	requestID := uuid.NewString()
	d.requestID = requestID
	d.models = models
	d.results = make(map[ModelType]string, len(models))
	d.loading = true
	d.inFlight += len(models)
	d.metrics.SetInFlight(d.inFlight)
	d.workers.Add(len(models))
	d.notifyLocked()
	d.mu.Unlock()

	GetLogger().Debug("Classification dispatched",
		logger.String("request_id", requestID),
		logger.Uint64("generation", gen),
		logger.Any("models", models),
		logger.Bool("compare", compare))

	for _, m := range models {
		go d.run(gen, requestID, m, img)
	}
	return gen
}

// Reset clears results for a newly selected image. In-flight completions
// from earlier requests are discarded.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.generation++
	d.requestID = ""
	d.models = nil
	d.results = make(map[ModelType]string)
	d.loading = false
	d.notifyLocked()
}

// Snapshot returns a copy of the current state.
func (d *Dispatcher) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every state change.
// A slow subscriber only sees the latest pending state. Call cancel to unsubscribe.
func (d *Dispatcher) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := d.nextSubID
	d.nextSubID++
	d.subscribers[id] = ch
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if sub, ok := d.subscribers[id]; ok {
				delete(d.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Wait blocks until the request with the given generation completes, is
// superseded, the dispatcher closes or ctx ends. Once the dispatcher is
// closed Wait returns ErrClosed without matching generations, since Classify
// no longer starts requests and hands back the last one.
func (d *Dispatcher) Wait(ctx context.Context, generation uint64) (State, error) {
	updates, cancel := d.Subscribe()
	defer cancel()

	d.mu.Lock()
	closed := d.closed
	state := d.snapshotLocked()
	d.mu.Unlock()
	if closed {
		return state, ErrClosed
	}

	for {
		switch {
		case state.Generation > generation:
			return state, ErrSuperseded
		case state.Generation == generation && !state.Loading:
			return state, nil
		}

		select {
		case <-ctx.Done():
			return d.Snapshot(), ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return d.Snapshot(), ErrClosed
			}
			state = s
		}
	}
}

// Close cancels outstanding work, waits for in-flight goroutines and
// closes every subscription.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.workers.Wait()
	d.backends.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ch := range d.subscribers {
		delete(d.subscribers, id)
		close(ch)
	}
}

// run classifies img with one model and records the outcome.
func (d *Dispatcher) run(gen uint64, requestID string, m ModelType, img image.Image) {
	defer d.workers.Done()

	log := GetLogger().With(
		logger.String("request_id", requestID),
		logger.String("model", m.String()))

	start := time.Now()
	preds, err := d.invoke(m, img)
	elapsed := time.Since(start)

	if err == nil && len(preds) == 0 {
		err = ErrNoPredictions
	}
	d.metrics.RecordInference(m.String(), elapsed, err)

	var text string
	if err != nil {
		log.Warn("Classification failed",
			logger.Error(err),
			logger.Duration("elapsed", elapsed))
		text = FailureMessage(err)
	} else {
		text = FormatResult(preds[0])
		log.Debug("Classification finished",
			logger.String("label", preds[0].Label),
			logger.Float32("confidence", preds[0].Confidence),
			logger.Duration("elapsed", elapsed))
	}

	d.complete(gen, m, text)
}

type outcome struct {
	preds []Prediction
	err   error
}

// invoke calls the backend on its own goroutine so a timeout or shutdown
// can stop waiting for it. Panics become errors.
func (d *Dispatcher) invoke(m ModelType, img image.Image) ([]Prediction, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	h := d.registry.HandleFor(m)
	if h == nil {
		return nil, fmt.Errorf("no classifier registered for %s", m)
	}

	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	d.backends.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				GetLogger().Error("Classifier panicked",
					logger.String("model", m.String()),
					logger.Any("panic", r),
					logger.String("stack", string(debug.Stack())))
				done <- outcome{err: errors.New(fmt.Errorf("classifier panic: %v", r)).
					Category(errors.CategoryInference).
					Context("model", m.String()).
					Build()}
			}
		}()
		preds, err := h.Classify(ctx, img)
		done <- outcome{preds: preds, err: err}
	})

	select {
	case o := <-done:
		// a backend returning because its context ended is reported like the context
		if o.err == nil || ctx.Err() == nil {
			return o.preds, o.err
		}
	case <-ctx.Done():
	}
	return nil, d.contextError(ctx, m)
}

// contextError describes why a model stopped waiting for its backend.
func (d *Dispatcher) contextError(ctx context.Context, m ModelType) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New(fmt.Errorf("timed out after %s", d.timeout)).
			Category(errors.CategoryTimeout).
			Context("model", m.String()).
			Build()
	}
	return ErrClosed
}

// complete writes a result for generation gen. It is the only writer of results.
func (d *Dispatcher) complete(gen uint64, m ModelType, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inFlight--
	d.metrics.SetInFlight(d.inFlight)

	if gen != d.generation {
		d.metrics.RecordStaleResult(m.String())
		GetLogger().Debug("Discarding stale classification result",
			logger.String("model", m.String()),
			logger.Uint64("generation", gen),
			logger.Uint64("current_generation", d.generation))
		return
	}

	d.results[m] = text
	if len(d.results) == len(d.models) {
		d.loading = false
	}
	d.notifyLocked()
}

func (d *Dispatcher) snapshotLocked() State {
	return State{
		Generation: d.generation,
		RequestID:  d.requestID,
		Loading:    d.loading,
		Models:     slices.Clone(d.models),
		Results:    maps.Clone(d.results),
	}
}

// notifyLocked delivers the current state to every subscriber, replacing any
// snapshot a subscriber has not consumed yet.
func (d *Dispatcher) notifyLocked() {
	if len(d.subscribers) == 0 {
		return
	}
	state := d.snapshotLocked()
	for _, ch := range d.subscribers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}
