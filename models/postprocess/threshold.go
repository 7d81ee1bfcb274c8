package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-layout/models"
	"github.com/pkg/errors"
)

// DefaultConfidence is the per-class threshold used when none is configured.
const DefaultConfidence = 0.35

// ErrInvalidThresholds is returned when a threshold configuration does not
// match the vocabulary or holds out-of-range values.
var ErrInvalidThresholds = errors.New("invalid threshold configuration")

// ThresholdConfig is the per-class confidence configuration.
type ThresholdConfig struct {
	// DefaultConfidence applies to every class without an override.
	DefaultConfidence float64 `json:"default_conf"`
	// PerClass maps class names to their own minimum confidence.
	PerClass map[string]float64 `json:"class_thresholds"`
	// Exclude lists class names that are always dropped.
	Exclude []string `json:"exclude_classes"`
}

// ThresholdTable resolves the minimum confidence of every class id and holds
// the excluded class names. It is read-only once built.
type ThresholdTable struct {
	thresholds []float64
	excluded   map[string]struct{}
}

// NewThresholdTable resolves a ThresholdConfig against a vocabulary.
//
// Every class in the vocabulary gets exactly one threshold: its override
// when present, the default otherwise. Overrides and exclusions must name
// classes the vocabulary knows.
//
// Arguments:
//   - vocab: The class vocabulary.
//   - cfg: The threshold configuration.
//
// Returns:
//   - *ThresholdTable: The resolved table.
//   - error: ErrInvalidThresholds on unknown names or values outside [0,1].
func NewThresholdTable(vocab *models.Vocabulary, cfg ThresholdConfig) (*ThresholdTable, error) {
	if !validConfidence(cfg.DefaultConfidence) {
		return nil, errors.Wrapf(ErrInvalidThresholds, "default_conf %v outside [0,1]", cfg.DefaultConfidence)
	}

	names := make([]string, 0, len(cfg.PerClass))
	for name := range cfg.PerClass {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := vocab.Index(name); !ok {
			return nil, errors.Wrapf(ErrInvalidThresholds, "class_thresholds names unknown class %q", name)
		}
		if v := cfg.PerClass[name]; !validConfidence(v) {
			return nil, errors.Wrapf(ErrInvalidThresholds, "threshold %v for %q outside [0,1]", v, name)
		}
	}

	t := &ThresholdTable{
		thresholds: make([]float64, vocab.Len()),
		excluded:   make(map[string]struct{}, len(cfg.Exclude)),
	}
	for _, name := range cfg.Exclude {
		if _, ok := vocab.Index(name); !ok {
			return nil, errors.Wrapf(ErrInvalidThresholds, "exclude_classes names unknown class %q", name)
		}
		t.excluded[name] = struct{}{}
	}
	for _, c := range vocab.Classes() {
		if v, ok := cfg.PerClass[c.Name]; ok {
			t.thresholds[c.Index] = v
		} else {
			t.thresholds[c.Index] = cfg.DefaultConfidence
		}
	}
	return t, nil
}

func validConfidence(v float64) bool {
	return v >= 0 && v <= 1
}

// Len returns the number of class ids the table covers.
func (t *ThresholdTable) Len() int {
	return len(t.thresholds)
}

// Threshold returns the minimum confidence for a class id.
func (t *ThresholdTable) Threshold(classID int) (float64, bool) {
	if classID < 0 || classID >= len(t.thresholds) {
		return 0, false
	}
	return t.thresholds[classID], true
}

// Excluded reports whether detections of the named class are always dropped.
func (t *ThresholdTable) Excluded(name string) bool {
	_, ok := t.excluded[name]
	return ok
}

// ExcludedNames returns the excluded class names in sorted order.
func (t *ThresholdTable) ExcludedNames() []string {
	names := make([]string, 0, len(t.excluded))
	for name := range t.excluded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
