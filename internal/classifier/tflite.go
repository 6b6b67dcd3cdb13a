package classifier

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// TFLiteClassifier runs a TensorFlow Lite image model such as MobileNetV2.
type TFLiteClassifier struct {
	name        string
	model       *tflite.Model
	interpreter *tflite.Interpreter
	delegate    delegates.Delegater
	labels      []string
	topN        int
	width       int
	height      int
	quantized   bool
	labelOffset int

	// the interpreter is not re-entrant
	mu sync.Mutex
}

// NewTFLiteClassifier loads the model and labels described by cfg.
func NewTFLiteClassifier(name string, cfg conf.MobileNetV2Config) (*TFLiteClassifier, error) {
	start := time.Now()

	labels, err := LoadLabels(cfg.LabelPath)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read model file: %w", err)).
			Category(errors.CategoryModelLoad).
			ModelContext(cfg.ModelPath, name).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, name).
			Context("model_size_mb", len(modelData)/1024/1024).
			Context("use_xnnpack", cfg.UseXNNPACK).
			Timing("model-init", time.Since(start)).
			Build()
	}

	c := &TFLiteClassifier{
		name:   name,
		model:  model,
		labels: labels,
		topN:   cfg.TopN,
	}

	threads := determineThreadCount(cfg.Threads)
	if err := c.initInterpreter(threads, cfg.UseXNNPACK); err != nil {
		_ = c.Close()
		return nil, errors.New(err).
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, name).
			Context("threads", threads).
			Timing("model-init", time.Since(start)).
			Build()
	}

	// The model data is no longer needed as TFLite has created its own internal copy
	runtime.GC()

	GetLogger().Info("TFLite model initialized",
		logger.String("model", name),
		logger.String("path", cfg.ModelPath),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", c.delegate != nil),
		logger.Bool("quantized", c.quantized),
		logger.Int("labels", len(labels)),
		logger.Duration("elapsed", time.Since(start)))

	return c, nil
}

func (c *TFLiteClassifier) initInterpreter(threads int, useXNNPACK bool) error {
	options := tflite.NewInterpreterOptions()

	log := GetLogger()
	if useXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("Failed to create XNNPACK delegate, falling back to default CPU",
				logger.String("model", c.name))
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
			c.delegate = delegate
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("model", c.name), logger.String("message", msg))
	}, nil)

	c.interpreter = tflite.NewInterpreter(c.model, options)
	if c.interpreter == nil {
		return fmt.Errorf("cannot create interpreter")
	}
	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("tensor allocation failed: %v", status)
	}

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("cannot get input tensor")
	}
	if input.NumDims() != 4 || input.Dim(3) != 3 {
		return fmt.Errorf("unsupported input shape: expected [1,H,W,3] with %d dims", input.NumDims())
	}
	c.height = input.Dim(1)
	c.width = input.Dim(2)

	switch input.Type() {
	case tflite.Float32:
	case tflite.UInt8:
		c.quantized = true
	default:
		return fmt.Errorf("unsupported input tensor type: %v", input.Type())
	}

	output := c.interpreter.GetOutputTensor(0)
	if output == nil {
		return fmt.Errorf("cannot get output tensor")
	}
	switch outputSize := output.Dim(output.NumDims() - 1); outputSize {
	case len(c.labels):
	case len(c.labels) + 1:
		// index 0 is a background class the labels file omits
		c.labelOffset = 1
	default:
		return fmt.Errorf("model output size %d does not match label count %d", outputSize, len(c.labels))
	}

	return nil
}

// Classify runs the model on img and returns the ranked predictions.
func (c *TFLiteClassifier) Classify(ctx context.Context, img image.Image) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prepared, err := prepareImage(img, c.width, c.height)
	if err != nil {
		return nil, err
	}

	scores, err := c.predict(prepared)
	if err != nil {
		return nil, err
	}

	return rankPredictions(c.labels, scores, c.topN)
}

func (c *TFLiteClassifier) predict(img image.Image) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return nil, fmt.Errorf("classifier is closed")
	}

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}

	if c.quantized {
		copy(input.UInt8s(), imageToUint8(img))
	} else {
		copy(input.Float32s(), imageToFloat32(img, layoutNHWC, normMobileNet))
	}

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	scores, err := extractScores(c.interpreter.GetOutputTensor(0))
	if err != nil {
		return nil, err
	}
	if !isProbabilityVector(scores) {
		softmax(scores)
	}
	return scores[c.labelOffset:], nil
}

// extractScores copies the output tensor into a float32 slice, dequantizing if needed.
func extractScores(tensor *tflite.Tensor) ([]float32, error) {
	if tensor == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	size := tensor.Dim(tensor.NumDims() - 1)
	scores := make([]float32, size)

	switch tensor.Type() {
	case tflite.Float32:
		copy(scores, tensor.Float32s()[:size])
	case tflite.UInt8:
		q := tensor.QuantizationParams()
		for i, v := range tensor.UInt8s()[:size] {
			scores[i] = float32(q.Scale * float64(int(v)-q.ZeroPoint))
		}
	default:
		return nil, fmt.Errorf("unsupported output tensor type: %v", tensor.Type())
	}
	return scores, nil
}

// Close drops the interpreter, delegate and model. The native objects are
// freed by their cleanups once unreachable; the interpreter keeps its options
// and delegate alive until then.
func (c *TFLiteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.interpreter = nil
	c.delegate = nil
	c.model = nil
	return nil
}
