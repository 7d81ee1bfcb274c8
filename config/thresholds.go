package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/nvr-ai/go-layout/models"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/pkg/errors"
)

// thresholdsFile mirrors the JSON file so an absent default_conf can be told
// apart from an explicit 0.
type thresholdsFile struct {
	DefaultConfidence *float64           `json:"default_conf"`
	PerClass          map[string]float64 `json:"class_thresholds"`
	Exclude           []string           `json:"exclude_classes"`
}

// LoadThresholds reads a thresholds JSON file.
//
// Arguments:
//   - path: The file to read.
//
// Returns:
//   - postprocess.ThresholdConfig: The configuration, default_conf 0.35 when absent.
//   - error: An error if the file cannot be read or decoded.
func LoadThresholds(path string) (postprocess.ThresholdConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return postprocess.ThresholdConfig{}, errors.Wrapf(err, "read thresholds %s", path)
	}
	cfg, err := ParseThresholds(raw)
	if err != nil {
		return cfg, errors.Wrapf(err, "thresholds %s", path)
	}
	return cfg, nil
}

// ParseThresholds decodes thresholds JSON. Unknown keys are rejected.
func ParseThresholds(raw []byte) (postprocess.ThresholdConfig, error) {
	var file thresholdsFile
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return postprocess.ThresholdConfig{}, errors.Wrap(postprocess.ErrInvalidThresholds, err.Error())
	}

	cfg := postprocess.ThresholdConfig{
		DefaultConfidence: postprocess.DefaultConfidence,
		PerClass:          file.PerClass,
		Exclude:           file.Exclude,
	}
	if file.DefaultConfidence != nil {
		cfg.DefaultConfidence = *file.DefaultConfidence
	}
	return cfg, nil
}

// LoadVocabulary reads the class vocabulary from a data.yaml file, or returns
// the built-in document layout classes when path is empty.
func LoadVocabulary(path string) (*models.Vocabulary, error) {
	if path == "" {
		return models.NewVocabulary(models.DocLayoutClasses)
	}
	return models.LoadVocabulary(path)
}

// LoadPipeline builds the post-processing pipeline from the configured files.
func (c *Config) LoadPipeline() (*postprocess.Pipeline, error) {
	vocab, err := LoadVocabulary(c.DataYAML)
	if err != nil {
		return nil, err
	}
	thresholds, err := LoadThresholds(c.ThresholdsJSON)
	if err != nil {
		return nil, err
	}
	return postprocess.NewPipeline(vocab, thresholds)
}
