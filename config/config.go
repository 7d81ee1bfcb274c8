// Package config - Service configuration from the environment and config files.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-layout/inference"
	"github.com/pkg/errors"
)

// DetectorBackend selects where inference runs.
type DetectorBackend string

const (
	// BackendONNX runs the model in-process through onnxruntime.
	BackendONNX DetectorBackend = "onnx"
	// BackendHTTP posts images to an external model service.
	BackendHTTP DetectorBackend = "http"
)

// Config holds the service settings.
type Config struct {
	Port int
	// DataYAML is the class vocabulary file. Empty uses the built-in classes.
	DataYAML string
	// ThresholdsJSON is the per-class confidence configuration file.
	ThresholdsJSON string
	Backend        DetectorBackend
	ModelPath      string
	// OnnxRuntimeLib overrides the platform default onnxruntime library.
	OnnxRuntimeLib string
	OnnxProvider   inference.ProviderBackend
	OnnxDeviceID   int
	InferenceURL   string
	// HealthURL is polled by /health for the http backend. Empty skips the check.
	HealthURL        string
	InferenceTimeout time.Duration
	MaxUploadMB      int
	LogLevel         string
	LogDevelopment   bool
	// Defaults applied to requests that do not set their own parameters.
	Defaults inference.Params
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when one exists.
//
// Returns:
//   - *Config: The configuration.
//   - error: An error if the .env file is malformed or a value does not parse.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	e := &envReader{}
	cfg := &Config{
		Port:             e.int("PORT", 8000),
		DataYAML:         e.string("DATA_YAML", filepath.Join("data", "data.yaml")),
		ThresholdsJSON:   e.string("THRESHOLDS_JSON", filepath.Join("config", "thresholds.json")),
		Backend:          DetectorBackend(strings.ToLower(e.string("DETECTOR_BACKEND", string(BackendONNX)))),
		ModelPath:        e.string("MODEL_PATH", filepath.Join("weights", "best.onnx")),
		OnnxRuntimeLib:   e.string("ONNXRUNTIME_LIB", ""),
		OnnxDeviceID:     e.int("ONNX_DEVICE_ID", 0),
		InferenceURL:     e.string("INFERENCE_URL", "http://localhost:5000/predict"),
		HealthURL:        e.string("INFERENCE_HEALTH_URL", ""),
		InferenceTimeout: e.duration("INFERENCE_TIMEOUT", 60*time.Second),
		MaxUploadMB:      e.int("MAX_UPLOAD_MB", 50),
		LogLevel:         e.string("LOG_LEVEL", "info"),
		LogDevelopment:   e.bool("LOG_DEVELOPMENT", false),
		Defaults: inference.Params{
			ImageSize:     e.int("DEFAULT_IMGSZ", inference.DefaultImageSize),
			IoU:           e.float("DEFAULT_IOU", inference.DefaultIoU),
			MinConfidence: e.float("DEFAULT_CONF_MIN", inference.DefaultMinConfidence),
		},
	}
	if e.err != nil {
		return nil, e.err
	}
	provider, err := inference.ParseProviderBackend(e.string("ONNX_PROVIDER", string(inference.ProviderCPU)))
	if err != nil {
		return nil, err
	}
	cfg.OnnxProvider = provider

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings are consistent.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("PORT %d out of range", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return errors.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	switch c.Backend {
	case BackendONNX:
		if c.ModelPath == "" {
			return errors.New("MODEL_PATH is required for the onnx backend")
		}
	case BackendHTTP:
		if c.InferenceURL == "" {
			return errors.New("INFERENCE_URL is required for the http backend")
		}
	default:
		return errors.Errorf("unknown DETECTOR_BACKEND %q", c.Backend)
	}
	if err := c.Defaults.Validate(); err != nil {
		return errors.Wrap(err, "default inference parameters")
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// envReader reads typed environment values and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (e *envReader) string(key, defaultValue string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (e *envReader) int(key string, defaultValue int) int {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *envReader) float(key string, defaultValue float64) float64 {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *envReader) bool(key string, defaultValue bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "parse %s=%q", key, value)
	}
}
