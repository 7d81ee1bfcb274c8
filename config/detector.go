package config

import (
	"github.com/nvr-ai/go-layout/inference"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewDetector builds the configured detector backend.
//
// Arguments:
//   - numClasses: The vocabulary size the model must predict.
//   - logger: The logger passed to the backend.
//
// Returns:
//   - inference.Detector: The detector. Callers must Close it.
//   - error: An error if the backend cannot be initialized.
func (c *Config) NewDetector(numClasses int, logger *zap.Logger) (inference.Detector, error) {
	switch c.Backend {
	case BackendONNX:
		det, err := inference.NewONNXDetector(inference.ONNXConfig{
			ModelPath:     c.ModelPath,
			SharedLibPath: c.OnnxRuntimeLib,
			NumClasses:    numClasses,
			MaxDetections: inference.DefaultMaxDetections,
			Provider:      c.OnnxProvider,
			DeviceID:      c.OnnxDeviceID,
		}, logger)
		if err != nil {
			return nil, err
		}
		return det, nil
	case BackendHTTP:
		return inference.NewHTTPDetector(c.InferenceURL, c.HealthURL, c.InferenceTimeout), nil
	default:
		return nil, errors.Errorf("unknown detector backend %q", c.Backend)
	}
}
