package datastore

import (
	"context"
	"time"

	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// StateSource is the subset of the dispatcher the recorder observes.
type StateSource interface {
	Subscribe() (<-chan classifier.State, func())
}

// Recorder stores every completed generation exactly once.
type Recorder struct {
	store Interface
	now   func() time.Time
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Interface) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Run records completed states until ctx is cancelled or the subscription
// closes. Save failures are logged and do not stop the recorder.
func (r *Recorder) Run(ctx context.Context, source StateSource) {
	updates, cancel := source.Subscribe()
	defer cancel()

	var lastSaved uint64
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if !s.Complete() || s.Generation == lastSaved {
				continue
			}
			lastSaved = s.Generation
			if err := r.store.Save(ctx, NewClassification(s, r.now())); err != nil {
				GetLogger().Warn("failed to record classification",
					logger.String("request_id", s.RequestID),
					logger.Uint64("generation", s.Generation),
					logger.Error(err))
			}
		}
	}
}
