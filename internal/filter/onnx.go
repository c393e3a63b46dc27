// Package filter provides the optional ONNX advisory model that scores
// candidate feature vectors before rule evaluation.
package filter

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"pair_trader/internal/core"
	apperrors "pair_trader/pkg/errors"
)

// DefaultApproveThreshold is the minimum model score for approval
const DefaultApproveThreshold = 0.5

var ortInitOnce sync.Once

// InitializeORT points the runtime at the shared onnxruntime library and
// initializes the environment. Safe to call more than once.
func InitializeORT() error {
	var err error
	ortInitOnce.Do(func() {
		libPath := "/usr/lib/libonnxruntime.so"
		if runtime.GOOS == "windows" {
			libPath = "onnxruntime.dll"
		} else if runtime.GOOS == "darwin" {
			libPath = "libonnxruntime.dylib"
		}
		ort.SetSharedLibraryPath(libPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// Config holds advisory model settings
type Config struct {
	ModelPath        string
	ApproveThreshold float64
}

// ONNXFilter runs a single-output classifier over
// [spread, volatility, imbalance, zscore] and approves when the score
// meets the threshold. It is advisory only: callers treat any returned
// error as an approval.
type ONNXFilter struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	threshold float64
	logger    core.ILogger
}

// NewONNXFilter loads the model at cfg.ModelPath and prepares a reusable
// inference session.
func NewONNXFilter(cfg Config, logger core.ILogger) (*ONNXFilter, error) {
	if err := InitializeORT(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	if cfg.ApproveThreshold <= 0 {
		cfg.ApproveThreshold = DefaultApproveThreshold
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, 4), make([]float32, 4))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session for %s: %w", cfg.ModelPath, err)
	}

	return &ONNXFilter{
		session:   session,
		input:     inputTensor,
		output:    outputTensor,
		threshold: cfg.ApproveThreshold,
		logger:    logger.WithField("component", "onnx_filter"),
	}, nil
}

// Predict scores the feature vector. The session holds a single reusable
// tensor pair, so calls are serialized.
func (f *ONNXFilter) Predict(fv *core.FeatureVector) (core.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return core.Verdict{}, apperrors.ErrModelUnavailable
	}

	data := f.input.GetData()
	data[0] = float32(fv.Spread)
	data[1] = float32(fv.Volatility)
	data[2] = float32(fv.Imbalance)
	data[3] = float32(fv.ZScore)

	if err := f.session.Run(); err != nil {
		return core.Verdict{}, fmt.Errorf("inference failed: %w", err)
	}

	score := float64(f.output.GetData()[0])
	return core.Verdict{Approve: score >= f.threshold, Score: score}, nil
}

// Close releases the session and its tensors.
func (f *ONNXFilter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != nil {
		f.session.Destroy()
		f.session = nil
	}
	if f.input != nil {
		f.input.Destroy()
		f.input = nil
	}
	if f.output != nil {
		f.output.Destroy()
		f.output = nil
	}
}
