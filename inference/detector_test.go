package inference

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		params Params
	}{
		{"tiny image size", Params{ImageSize: 16, IoU: 0.5}},
		{"huge image size", Params{ImageSize: 8192, IoU: 0.5}},
		{"negative iou", Params{ImageSize: 640, IoU: -0.1}},
		{"conf above one", Params{ImageSize: 640, IoU: 0.5, MinConfidence: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ErrInvalidParams, errors.Cause(tt.params.Validate()))
		})
	}
}

func TestParseProviderBackend(t *testing.T) {
	for in, expect := range map[string]ProviderBackend{
		"":         ProviderCPU,
		"cpu":      ProviderCPU,
		" CUDA ":   ProviderCUDA,
		"coreml":   ProviderCoreML,
		"openvino": ProviderOpenVINO,
	} {
		got, err := ParseProviderBackend(in)
		assert.NoError(t, err, in)
		assert.Equal(t, expect, got, in)
	}

	_, err := ParseProviderBackend("tpu")
	assert.Error(t, err)
}
