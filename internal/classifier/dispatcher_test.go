package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDispatcher_SingleModel(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.97}}}
	b := &staticClassifier{preds: []Prediction{{Label: "dog", Confidence: 0.5}}}
	d := NewDispatcher(newTestRegistry(t, a, b))
	defer d.Close()

	gen := d.Classify(testImage(), MobileNetV2, false)
	state, err := d.Wait(waitCtx(t), gen)
	require.NoError(t, err)

	assert.Equal(t, []ModelType{MobileNetV2}, state.Models)
	assert.Equal(t, map[ModelType]string{MobileNetV2: "cat (97%)"}, state.Results)
	assert.False(t, state.Loading)
	assert.True(t, state.Complete())
	assert.NotEmpty(t, state.RequestID)
	assert.Zero(t, b.calls.Load(), "unselected model must not run")
}

func TestDispatcher_CurrentModelOnly(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.9}}}
	b := &staticClassifier{preds: []Prediction{{Label: "tabby", Confidence: 0.5}}}
	d := NewDispatcher(newTestRegistry(t, a, b))
	defer d.Close()

	state, err := d.Wait(waitCtx(t), d.Classify(testImage(), ResNet50, false))
	require.NoError(t, err)

	assert.Equal(t, map[ModelType]string{ResNet50: "tabby (50%)"}, state.Results)
	assert.Zero(t, a.calls.Load())
}

func TestDispatcher_CompareRunsAllModels(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.97}}}
	b := &staticClassifier{preds: []Prediction{{Label: "tabby", Confidence: 0.42}}}
	d := NewDispatcher(newTestRegistry(t, a, b))
	defer d.Close()

	// current model does not matter in compare mode
	state, err := d.Wait(waitCtx(t), d.Classify(testImage(), ResNet50, true))
	require.NoError(t, err)

	assert.Equal(t, AllModelTypes(), state.Models)
	assert.Len(t, state.Results, len(AllModelTypes()))
	assert.Equal(t, "cat (97%)", state.Results[MobileNetV2])
	assert.Equal(t, "tabby (42%)", state.Results[ResNet50])
}

func TestDispatcher_LoadingClearsOnlyWhenAllResultsArrive(t *testing.T) {
	t.Parallel()

	orders := map[string][]ModelType{
		"A then B": {MobileNetV2, ResNet50},
		"B then A": {ResNet50, MobileNetV2},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gates := map[ModelType]*gatedClassifier{MobileNetV2: newGated(), ResNet50: newGated()}
			d := NewDispatcher(newTestRegistry(t, gates[MobileNetV2], gates[ResNet50]))
			defer d.Close()

			updates, cancel := d.Subscribe()
			defer cancel()

			gen := d.Classify(testImage(), MobileNetV2, true)
			first := nextState(t, updates, func(s State) bool { return s.Generation == gen })
			assert.True(t, first.Loading)
			assert.Empty(t, first.Results)

			gates[MobileNetV2].awaitStart(t)
			gates[ResNet50].awaitStart(t)

			gates[order[0]].succeed(t, "first", 0.8)
			partial := nextState(t, updates, func(s State) bool { return len(s.Results) == 1 })
			assert.True(t, partial.Loading, "one of two results must keep loading")
			assert.Contains(t, partial.Results, order[0])

			gates[order[1]].succeed(t, "second", 0.6)
			done := nextState(t, updates, func(s State) bool { return len(s.Results) == 2 })
			assert.False(t, done.Loading)
			assert.Equal(t, "first (80%)", done.Results[order[0]])
			assert.Equal(t, "second (60%)", done.Results[order[1]])
		})
	}
}

func TestDispatcher_SuccessThenFailure(t *testing.T) {
	t.Parallel()

	a, b := newGated(), newGated()
	d := NewDispatcher(newTestRegistry(t, a, b))
	defer d.Close()

	updates, cancel := d.Subscribe()
	defer cancel()

	gen := d.Classify(testImage(), MobileNetV2, true)
	a.awaitStart(t)
	b.awaitStart(t)

	a.succeed(t, "cat", 0.97)
	s := nextState(t, updates, func(s State) bool { return len(s.Results) == 1 })
	assert.Equal(t, "cat (97%)", s.Results[MobileNetV2])
	assert.True(t, s.Loading)

	b.fail(t, fmt.Errorf("model unavailable"))
	state, err := d.Wait(waitCtx(t), gen)
	require.NoError(t, err)
	assert.Equal(t, "Classification failed: model unavailable", state.Results[ResNet50])
	assert.Equal(t, "cat (97%)", state.Results[MobileNetV2])
	assert.False(t, state.Loading)
}

func TestDispatcher_FailuresAreIsolated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		failing Classifier
		want    string
	}{
		{"error", &staticClassifier{err: fmt.Errorf("boom")}, "Classification failed: boom"},
		{"empty predictions", &staticClassifier{}, "Classification failed: " + ErrNoPredictions.Error()},
		{"panic", &staticClassifier{panicMsg: "interpreter exploded"}, "Classification failed: classifier panic: interpreter exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.5}}}
			metrics := newRecordingMetrics()
			d := NewDispatcher(newTestRegistry(t, ok, tt.failing), WithMetrics(metrics))
			defer d.Close()

			state, err := d.Wait(waitCtx(t), d.Classify(testImage(), MobileNetV2, true))
			require.NoError(t, err)
			assert.Equal(t, "cat (50%)", state.Results[MobileNetV2])
			assert.Equal(t, tt.want, state.Results[ResNet50])

			metrics.mu.Lock()
			defer metrics.mu.Unlock()
			assert.Equal(t, 1, metrics.failures["ResNet50"])
			assert.Zero(t, metrics.failures["MobileNetV2"])
			assert.Zero(t, metrics.inFlight)
		})
	}
}

func TestDispatcher_NilImage(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 1}}}
	d := NewDispatcher(newTestRegistry(t, a, a))
	defer d.Close()

	state, err := d.Wait(waitCtx(t), d.Classify(nil, MobileNetV2, true))
	require.NoError(t, err)
	for _, m := range AllModelTypes() {
		assert.Equal(t, FailureMessage(ErrNilImage), state.Results[m])
	}
	assert.Zero(t, a.calls.Load())
}

func TestDispatcher_Timeout(t *testing.T) {
	t.Parallel()

	ok := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.5}}}
	d := NewDispatcher(newTestRegistry(t, ok, blockingClassifier{}), WithTimeout(20*time.Millisecond))
	defer d.Close()

	state, err := d.Wait(waitCtx(t), d.Classify(testImage(), MobileNetV2, true))
	require.NoError(t, err)
	assert.Equal(t, "cat (50%)", state.Results[MobileNetV2])
	assert.Equal(t, "Classification failed: timed out after 20ms", state.Results[ResNet50])
}

func TestDispatcher_NewRequestDiscardsStaleResults(t *testing.T) {
	t.Parallel()

	a := newGated()
	b := &staticClassifier{preds: []Prediction{{Label: "dog", Confidence: 0.7}}}
	metrics := newRecordingMetrics()
	d := NewDispatcher(newTestRegistry(t, a, b), WithMetrics(metrics))
	defer d.Close()

	first := d.Classify(testImage(), MobileNetV2, false)
	a.awaitStart(t)

	second := d.Classify(testImage(), ResNet50, false)
	require.Greater(t, second, first)

	// superseded result arrives after the new request started
	a.succeed(t, "stale", 0.99)
	require.Eventually(t, func() bool { return metrics.staleCount("MobileNetV2") == 1 },
		5*time.Second, 5*time.Millisecond)

	state, err := d.Wait(waitCtx(t), second)
	require.NoError(t, err)
	assert.Equal(t, map[ModelType]string{ResNet50: "dog (70%)"}, state.Results)

	_, err = d.Wait(waitCtx(t), first)
	require.ErrorIs(t, err, ErrSuperseded)
}

func TestDispatcher_ResetClearsResults(t *testing.T) {
	t.Parallel()

	a := newGated()
	b := &staticClassifier{preds: []Prediction{{Label: "dog", Confidence: 0.7}}}
	metrics := newRecordingMetrics()
	d := NewDispatcher(newTestRegistry(t, a, b), WithMetrics(metrics))
	defer d.Close()

	gen := d.Classify(testImage(), MobileNetV2, true)
	a.awaitStart(t)
	require.Eventually(t, func() bool { return len(d.Snapshot().Results) == 1 },
		5*time.Second, 5*time.Millisecond)

	d.Reset()
	s := d.Snapshot()
	assert.Greater(t, s.Generation, gen)
	assert.Empty(t, s.Results)
	assert.Empty(t, s.Models)
	assert.False(t, s.Loading)

	a.succeed(t, "late", 0.9)
	require.Eventually(t, func() bool { return metrics.staleCount("MobileNetV2") == 1 },
		5*time.Second, 5*time.Millisecond)
	assert.Empty(t, d.Snapshot().Results, "stale result must not leak after reset")
}

func TestDispatcher_ResultsClearedBeforeNewEntries(t *testing.T) {
	t.Parallel()

	a := newGated()
	b := newGated()
	d := NewDispatcher(newTestRegistry(t, a, b))
	defer d.Close()

	gen := d.Classify(testImage(), MobileNetV2, true)
	a.awaitStart(t)
	b.awaitStart(t)
	a.succeed(t, "cat", 0.9)
	b.succeed(t, "dog", 0.8)
	_, err := d.Wait(waitCtx(t), gen)
	require.NoError(t, err)

	updates, cancel := d.Subscribe()
	defer cancel()

	next := d.Classify(testImage(), ResNet50, false)
	s := nextState(t, updates, func(s State) bool { return s.Generation == next })
	assert.Empty(t, s.Results)
	assert.True(t, s.Loading)
	assert.Equal(t, []ModelType{ResNet50}, s.Models)

	b.awaitStart(t)
	b.succeed(t, "tabby", 0.5)
	state, err := d.Wait(waitCtx(t), next)
	require.NoError(t, err)
	assert.Equal(t, map[ModelType]string{ResNet50: "tabby (50%)"}, state.Results)
}

func TestDispatcher_WaitContextCancelled(t *testing.T) {
	t.Parallel()

	a := newGated()
	d := NewDispatcher(newTestRegistry(t, a, a))
	defer d.Close()

	gen := d.Classify(testImage(), MobileNetV2, false)
	a.awaitStart(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	state, err := d.Wait(ctx, gen)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, state.Loading)

	a.succeed(t, "cat", 0.9)
	_, err = d.Wait(waitCtx(t), gen)
	require.NoError(t, err)
}

func TestDispatcher_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.9}}}
	d := NewDispatcher(newTestRegistry(t, a, a))
	defer d.Close()

	_, err := d.Wait(waitCtx(t), d.Classify(testImage(), MobileNetV2, false))
	require.NoError(t, err)

	s := d.Snapshot()
	s.Results[ResNet50] = "tampered"
	s.Models[0] = ResNet50

	fresh := d.Snapshot()
	assert.NotContains(t, fresh.Results, ResNet50)
	assert.Equal(t, []ModelType{MobileNetV2}, fresh.Models)
}

func TestDispatcher_SubscribeCancelAndClose(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.9}}}
	d := NewDispatcher(newTestRegistry(t, a, a))

	cancelled, cancel := d.Subscribe()
	cancel()
	cancel() // idempotent
	_, ok := <-cancelled
	assert.False(t, ok)

	open, cancelOpen := d.Subscribe()
	defer cancelOpen()

	d.Close()
	for range open {
		// drain pending snapshots until close
	}

	gen := d.Snapshot().Generation
	assert.Equal(t, gen, d.Classify(testImage(), MobileNetV2, false), "closed dispatcher must not start work")
	assert.Zero(t, a.calls.Load())

	late, _ := d.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	_, err := d.Wait(waitCtx(t), gen+1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_CloseCancelsInFlight(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(newTestRegistry(t, blockingClassifier{}, blockingClassifier{}))
	gen := d.Classify(testImage(), MobileNetV2, true)

	d.Close()

	s := d.Snapshot()
	assert.Equal(t, gen, s.Generation)
	assert.False(t, s.Loading)
	assert.Equal(t, FailureMessage(ErrClosed), s.Results[MobileNetV2])
}

func TestDispatcher_WaitAfterCloseDoesNotReturnEarlierResults(t *testing.T) {
	t.Parallel()

	a := &staticClassifier{preds: []Prediction{{Label: "cat", Confidence: 0.97}}}
	b := &staticClassifier{preds: []Prediction{{Label: "dog", Confidence: 0.6}}}
	d := NewDispatcher(newTestRegistry(t, a, b))

	gen := d.Classify(testImage(), MobileNetV2, false)
	_, err := d.Wait(waitCtx(t), gen)
	require.NoError(t, err)

	d.Close()

	late := d.Classify(testImage(), ResNet50, false)
	state, err := d.Wait(waitCtx(t), late)
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, gen, state.Generation)
	assert.Zero(t, b.calls.Load(), "closed dispatcher must not run ResNet50")
}

func TestRenderResults(t *testing.T) {
	t.Parallel()

	state := State{
		Models: []ModelType{MobileNetV2, ResNet50},
		Results: map[ModelType]string{
			ResNet50:    "tabby (42%)",
			MobileNetV2: "cat (97%)",
		},
	}
	assert.Equal(t, []string{"MobileNetV2: cat (97%)", "ResNet50: tabby (42%)"}, RenderResults(state, true))

	single := State{
		Models:  []ModelType{ResNet50},
		Results: map[ModelType]string{ResNet50: "tabby (42%)"},
	}
	assert.Equal(t, []string{"tabby (42%)"}, RenderResults(single, false))
	assert.Empty(t, RenderResults(State{}, true))
}
