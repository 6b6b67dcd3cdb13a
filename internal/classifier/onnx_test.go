package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeORT replaces the ONNX Runtime environment hooks for one test.
type fakeORT struct {
	initialized bool
	inits       int
	destroys    int
	initErr     error
}

func installFakeORT(t *testing.T, f *fakeORT) {
	t.Helper()
	origIs, origInit, origDestroy := ortIsInitialized, ortInitialize, ortDestroy
	ortMu.Lock()
	origRefs, origOwned := ortRefs, ortOwned
	ortRefs, ortOwned = 0, false
	ortMu.Unlock()

	ortIsInitialized = func() bool { return f.initialized }
	ortInitialize = func(string) error {
		if f.initErr != nil {
			return f.initErr
		}
		f.inits++
		f.initialized = true
		return nil
	}
	ortDestroy = func() error {
		f.destroys++
		f.initialized = false
		return nil
	}

	t.Cleanup(func() {
		ortIsInitialized, ortInitialize, ortDestroy = origIs, origInit, origDestroy
		ortMu.Lock()
		ortRefs, ortOwned = origRefs, origOwned
		ortMu.Unlock()
	})
}

func TestONNXRuntime_SharedUntilLastRelease(t *testing.T) {
	f := &fakeORT{}
	installFakeORT(t, f)

	require.NoError(t, acquireONNXRuntime(""))
	require.NoError(t, acquireONNXRuntime(""))
	assert.Equal(t, 1, f.inits)

	require.NoError(t, releaseONNXRuntime())
	assert.Zero(t, f.destroys, "environment must outlive the remaining session")
	assert.True(t, f.initialized)

	require.NoError(t, releaseONNXRuntime())
	assert.Equal(t, 1, f.destroys)

	require.NoError(t, releaseONNXRuntime(), "extra release is a no-op")
	assert.Equal(t, 1, f.destroys)
}

func TestONNXRuntime_FailedAcquireKeepsLiveEnvironment(t *testing.T) {
	f := &fakeORT{}
	installFakeORT(t, f)

	// a live registry holds a session
	require.NoError(t, acquireONNXRuntime(""))

	// a second registry fails after acquiring and releases its own reference
	require.NoError(t, acquireONNXRuntime(""))
	require.NoError(t, releaseONNXRuntime())

	assert.Zero(t, f.destroys)
	assert.True(t, f.initialized)
}

func TestONNXRuntime_NotOwnedIsNotDestroyed(t *testing.T) {
	f := &fakeORT{initialized: true}
	installFakeORT(t, f)

	require.NoError(t, acquireONNXRuntime(""))
	require.NoError(t, releaseONNXRuntime())
	assert.Zero(t, f.inits)
	assert.Zero(t, f.destroys)
}

func TestONNXRuntime_InitFailure(t *testing.T) {
	f := &fakeORT{initErr: errors.New("library not found")}
	installFakeORT(t, f)

	require.ErrorContains(t, acquireONNXRuntime("/missing/libonnxruntime.so"), "library not found")
	require.NoError(t, releaseONNXRuntime())
	assert.Zero(t, f.destroys)
}
