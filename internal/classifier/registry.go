package classifier

import (
	"fmt"
	"time"

	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// Registry owns one ready classifier per model type.
type Registry struct {
	handles map[ModelType]Classifier
}

// NewRegistry loads every supported model. Either all models load or none do:
// handles created before a failure are closed again.
func NewRegistry(settings *conf.Settings) (*Registry, error) {
	if settings == nil {
		return nil, errors.Newf("settings must not be nil").
			Category(errors.CategoryModelInit).
			Build()
	}

	start := time.Now()
	handles := make(map[ModelType]Classifier, len(AllModelTypes()))

	fail := func(model ModelType, err error) (*Registry, error) {
		for m, h := range handles {
			if cerr := h.Close(); cerr != nil {
				GetLogger().Warn("Failed to release model after init failure",
					logger.String("model", m.String()), logger.Error(cerr))
			}
		}
		category := errors.CategoryModelInit
		var ee *errors.EnhancedError
		if errors.As(err, &ee) && (ee.Category == errors.CategoryModelLoad || ee.Category == errors.CategoryLabelLoad) {
			category = ee.Category
		}
		return nil, errors.New(fmt.Errorf("failed to initialize %s: %w", model, err)).
			Category(category).
			Context("model", model.String()).
			Timing("registry-init", time.Since(start)).
			Build()
	}

	for _, m := range AllModelTypes() {
		var (
			h   Classifier
			err error
		)
		switch m {
		case MobileNetV2:
			h, err = NewTFLiteClassifier(m.String(), settings.Models.MobileNetV2)
		case ResNet50:
			h, err = NewONNXClassifier(m.String(), settings.Models.ResNet50)
		default:
			err = fmt.Errorf("no backend for model %s", m)
		}
		if err != nil {
			return fail(m, err)
		}
		handles[m] = h
	}

	GetLogger().Info("Model registry initialized",
		logger.Int("models", len(handles)),
		logger.Duration("elapsed", time.Since(start)))

	return &Registry{handles: handles}, nil
}

// NewRegistryFromClassifiers builds a registry from existing handles.
// Every model type must be present.
func NewRegistryFromClassifiers(handles map[ModelType]Classifier) (*Registry, error) {
	r := &Registry{handles: make(map[ModelType]Classifier, len(handles))}
	for _, m := range AllModelTypes() {
		h, ok := handles[m]
		if !ok || h == nil {
			return nil, errors.Newf("missing classifier for model %s", m).
				Category(errors.CategoryModelInit).
				Context("model", m.String()).
				Build()
		}
		r.handles[m] = h
	}
	return r, nil
}

// HandleFor returns the classifier for m.
func (r *Registry) HandleFor(m ModelType) Classifier {
	return r.handles[m]
}

// Models returns the registered models in declaration order.
func (r *Registry) Models() []ModelType {
	return AllModelTypes()
}

// Close releases every handle.
func (r *Registry) Close() error {
	var errs []error
	for _, m := range AllModelTypes() {
		h, ok := r.handles[m]
		if !ok {
			continue
		}
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", m, err))
		}
	}
	return errors.Join(errs...)
}
