package inference

import (
	"context"
	"os"
	"sync"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ONNXConfig configures a local YOLOv8 ONNX detector.
type ONNXConfig struct {
	// ModelPath is the path to the exported .onnx weights.
	ModelPath string
	// SharedLibPath overrides the onnxruntime shared library location.
	SharedLibPath string
	// NumClasses is the size of the vocabulary the model was trained on.
	NumClasses int
	// IntraOpThreads sets the threads used inside a single node. 0 lets onnxruntime decide.
	IntraOpThreads int
	// MaxDetections caps the boxes kept after NMS.
	MaxDetections int
	// Provider selects the execution provider. Empty means CPU.
	Provider ProviderBackend
	// DeviceID is the accelerator index for providers that take one.
	DeviceID int
}

// ONNXDetector runs a YOLOv8 layout model through onnxruntime.
type ONNXDetector struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	// fixedSize is the static input side of the model, or 0 for dynamic exports.
	fixedSize  int
	numClasses int
	maxDet     int
	modelPath  string
	logger     *zap.Logger
}

var ortInit sync.Mutex

// initializeEnvironment loads the onnxruntime library once per process.
func initializeEnvironment(libPath string) error {
	ortInit.Lock()
	defer ortInit.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize onnxruntime environment")
	}
	return nil
}

// NewONNXDetector loads the model and prepares a session.
//
// The model's single input must be [1,3,H,W] and its first output
// [1,4+nc,N]. When the export has a static class dimension it must match
// cfg.NumClasses.
//
// Arguments:
//   - cfg: The detector configuration.
//   - logger: The logger for startup and inference events.
//
// Returns:
//   - *ONNXDetector: The ready detector.
//   - error: An error if the runtime, model or session cannot be set up.
func NewONNXDetector(cfg ONNXConfig, logger *zap.Logger) (*ONNXDetector, error) {
	if cfg.NumClasses <= 0 {
		return nil, errors.New("onnx detector needs at least one class")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model weights not found at %s", cfg.ModelPath)
	}

	libPath := cfg.SharedLibPath
	if libPath == "" {
		var err error
		if libPath, err = GetSharedLibPath(); err != nil {
			return nil, err
		}
	}
	if err := initializeEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "read model inputs and outputs")
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, errors.Errorf("expected 1 input and at least 1 output, model has %d and %d", len(inputs), len(outputs))
	}

	in := inputs[0].Dimensions
	if len(in) != 4 {
		return nil, errors.Errorf("input %q has shape %v, expected [1,3,H,W]", inputs[0].Name, in)
	}
	fixedSize := 0
	if in[2] > 0 || in[3] > 0 {
		if in[2] != in[3] {
			return nil, errors.Errorf("input %q is not square: %v", inputs[0].Name, in)
		}
		fixedSize = int(in[2])
	}

	out := outputs[0].Dimensions
	if len(out) != 3 {
		return nil, errors.Errorf("output %q has shape %v, expected [1,4+nc,N]", outputs[0].Name, out)
	}
	if out[1] > 0 && int(out[1])-4 != cfg.NumClasses {
		return nil, errors.Errorf("model predicts %d classes but the vocabulary has %d", out[1]-4, cfg.NumClasses)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return nil, errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "set graph optimization level")
	}
	if err := appendProvider(options, cfg.Provider, cfg.DeviceID); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create onnx session")
	}

	maxDet := cfg.MaxDetections
	if maxDet <= 0 {
		maxDet = DefaultMaxDetections
	}

	d := &ONNXDetector{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		fixedSize:  fixedSize,
		numClasses: cfg.NumClasses,
		maxDet:     maxDet,
		modelPath:  cfg.ModelPath,
		logger:     logger,
	}

	logger.Info("onnx detector initialized",
		zap.String("model", cfg.ModelPath),
		zap.String("input", d.inputName),
		zap.String("output", d.outputName),
		zap.Int("fixed_size", fixedSize),
		zap.Int("classes", cfg.NumClasses),
		zap.String("provider", string(cfg.Provider)),
	)

	return d, nil
}

// Source returns the model path.
func (d *ONNXDetector) Source() string {
	return d.modelPath
}

// InputSize returns the side the model will actually run at for a request.
func (d *ONNXDetector) InputSize(requested int) int {
	if d.fixedSize > 0 {
		return d.fixedSize
	}
	return StrideAlign(requested)
}

// Detect letterboxes the image, runs the model and applies class-aware NMS.
func (d *ONNXDetector) Detect(
	ctx context.Context,
	img *images.Image,
	params Params,
) ([]postprocess.RawDetection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	src, err := img.ToImage()
	if err != nil {
		return nil, errors.Wrap(ErrDetector, err.Error())
	}

	size := d.InputSize(params.ImageSize)
	data, lb := PrepareInput(src, size)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), data)
	if err != nil {
		return nil, errors.Wrapf(ErrDetector, "create input tensor: %v", err)
	}
	defer input.Destroy()

	anchors := AnchorCount(size)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+d.numClasses), int64(anchors)))
	if err != nil {
		return nil, errors.Wrapf(ErrDetector, "create output tensor: %v", err)
	}
	defer output.Destroy()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	d.mu.Lock()
	err = d.session.Run([]ort.Value{input}, []ort.Value{output})
	d.mu.Unlock()
	if err != nil {
		return nil, errors.Wrapf(ErrDetector, "run session: %v", err)
	}

	candidates, err := DecodeYOLOv8(output.GetData(), d.numClasses, anchors, lb,
		img.Width, img.Height, params.MinConfidence)
	if err != nil {
		return nil, err
	}

	detections := postprocess.ApplyGreedyNMS(candidates, postprocess.NMSConfig{
		IoUThreshold:  params.IoU,
		ClassAware:    true,
		MaxDetections: d.maxDet,
	})

	d.logger.Debug("onnx inference",
		zap.Int("size", size),
		zap.Int("candidates", len(candidates)),
		zap.Int("detections", len(detections)),
	)

	return detections, nil
}

// Close destroys the onnx session.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return errors.Wrap(err, "destroy onnx session")
		}
		d.session = nil
	}
	return nil
}
