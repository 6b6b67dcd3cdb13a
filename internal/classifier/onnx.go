package classifier

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// onnxInputSize is the square input resolution of ImageNet ResNet exports.
const onnxInputSize = 224

// The ONNX Runtime environment is process-wide. Each live ONNXClassifier
// holds one reference; the environment is destroyed when the last reference
// is released, and only if this package initialized it.
var (
	ortMu    sync.Mutex
	ortRefs  int
	ortOwned bool

	ortIsInitialized = ort.IsInitialized
	ortInitialize    = func(sharedLibPath string) error {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		return ort.InitializeEnvironment()
	}
	ortDestroy = ort.DestroyEnvironment
)

// ONNXClassifier runs an ONNX image model such as ResNet50.
type ONNXClassifier struct {
	name       string
	session    *ort.DynamicAdvancedSession
	labels     []string
	topN       int
	inputName  string
	outputName string

	// a session is not re-entrant
	mu sync.Mutex
}

// NewONNXClassifier loads the model and labels described by cfg.
func NewONNXClassifier(name string, cfg conf.ResNet50Config) (*ONNXClassifier, error) {
	start := time.Now()

	labels, err := LoadLabels(cfg.LabelPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.New(fmt.Errorf("model file not found: %w", err)).
			Category(errors.CategoryModelLoad).
			ModelContext(cfg.ModelPath, name).
			Build()
	}

	if err := acquireONNXRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, name).
			Context("shared_library", cfg.SharedLibraryPath).
			Build()
	}

	c, err := newONNXSession(name, cfg, labels, start)
	if err != nil {
		if rerr := releaseONNXRuntime(); rerr != nil {
			GetLogger().Warn("Failed to release ONNX runtime", logger.Error(rerr))
		}
		return nil, err
	}
	return c, nil
}

func newONNXSession(name string, cfg conf.ResNet50Config, labels []string, start time.Time) (*ONNXClassifier, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create session options: %w", err)).
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, name).
			Build()
	}
	defer func() { _ = options.Destroy() }()

	threads := determineThreadCount(0)
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		GetLogger().Warn("Failed to set ONNX intra-op threads", logger.Error(err))
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, options)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to load ONNX model: %w", err)).
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, name).
			Context("input_name", cfg.InputName).
			Context("output_name", cfg.OutputName).
			Timing("model-init", time.Since(start)).
			Build()
	}

	GetLogger().Info("ONNX model initialized",
		logger.String("model", name),
		logger.String("path", cfg.ModelPath),
		logger.Int("threads", threads),
		logger.Int("labels", len(labels)),
		logger.Duration("elapsed", time.Since(start)))

	return &ONNXClassifier{
		name:       name,
		session:    session,
		labels:     labels,
		topN:       cfg.TopN,
		inputName:  cfg.InputName,
		outputName: cfg.OutputName,
	}, nil
}

// acquireONNXRuntime takes a reference on the environment, initializing it
// on first use.
func acquireONNXRuntime(sharedLibPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefs == 0 {
		ortOwned = false
		if !ortIsInitialized() {
			if err := ortInitialize(sharedLibPath); err != nil {
				return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
			}
			ortOwned = true
		}
	}
	ortRefs++
	return nil
}

// releaseONNXRuntime drops a reference taken by acquireONNXRuntime.
func releaseONNXRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefs == 0 {
		return nil
	}
	ortRefs--
	if ortRefs > 0 || !ortOwned {
		return nil
	}
	ortOwned = false
	if !ortIsInitialized() {
		return nil
	}
	return ortDestroy()
}

// Classify runs the model on img and returns the ranked predictions.
func (c *ONNXClassifier) Classify(ctx context.Context, img image.Image) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prepared, err := prepareImage(img, onnxInputSize, onnxInputSize)
	if err != nil {
		return nil, err
	}
	input := imageToFloat32(prepared, layoutNCHW, normImageNet)

	scores, err := c.run(input)
	if err != nil {
		return nil, err
	}

	if !isProbabilityVector(scores) {
		softmax(scores)
	}
	return rankPredictions(c.labels, scores, c.topN)
}

func (c *ONNXClassifier) run(input []float32) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, onnxInputSize, onnxInputSize), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = inputTensor.Destroy() }()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(c.labels))))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer func() { _ = outputTensor.Destroy() }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, fmt.Errorf("classifier is closed")
	}

	if err := c.session.Run(
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
	); err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}

	out := outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// Close destroys the session.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return errors.Join(err, releaseONNXRuntime())
}
