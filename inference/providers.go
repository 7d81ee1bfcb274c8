package inference

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an onnxruntime execution provider.
type ProviderBackend string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU ProviderBackend = "cpu"
	// ProviderCoreML uses Apple CoreML.
	ProviderCoreML ProviderBackend = "coreml"
	// ProviderCUDA uses NVIDIA CUDA.
	ProviderCUDA ProviderBackend = "cuda"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO ProviderBackend = "openvino"
)

// ParseProviderBackend parses a provider name. Empty means CPU.
func ParseProviderBackend(name string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return ProviderCPU, nil
	case ProviderCPU, ProviderCoreML, ProviderCUDA, ProviderOpenVINO:
		return b, nil
	default:
		return "", errors.Errorf("unknown execution provider %q", name)
	}
}

// appendProvider enables the execution provider on the session options.
// The CPU provider is always present and needs nothing.
func appendProvider(options *ort.SessionOptions, backend ProviderBackend, deviceID int) error {
	switch backend {
	case "", ProviderCPU:
		return nil
	case ProviderCoreML:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "enable coreml")
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create cuda options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
			return errors.Wrap(err, "set cuda options")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enable cuda")
	case ProviderOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
		}), "enable openvino")
	default:
		return errors.Errorf("unknown execution provider %q", backend)
	}
}
