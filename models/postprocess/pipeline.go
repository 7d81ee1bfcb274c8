package postprocess

import (
	"github.com/nvr-ai/go-layout/models"
	"github.com/pkg/errors"
)

// Pipeline holds the process-wide, read-only post-processing context: the
// class vocabulary, the resolved threshold table and the layout rules.
// It is built once at startup and is safe for concurrent use.
type Pipeline struct {
	vocab  *models.Vocabulary
	table  *ThresholdTable
	rules  []LayoutRule
	config ThresholdConfig
}

// Stats counts regions at each stage of a pipeline run.
type Stats struct {
	Raw      int
	Filtered int
	Final    int
}

// Result is the outcome of a pipeline run.
type Result struct {
	Regions []Region
	Stats   Stats
}

// NewPipeline resolves the threshold configuration against the vocabulary.
//
// Arguments:
//   - vocab: The class vocabulary.
//   - cfg: The threshold configuration.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error if the configuration does not match the vocabulary.
func NewPipeline(vocab *models.Vocabulary, cfg ThresholdConfig) (*Pipeline, error) {
	if vocab == nil {
		return nil, errors.Wrap(models.ErrInvalidVocabulary, "nil vocabulary")
	}
	table, err := NewThresholdTable(vocab, cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		vocab:  vocab,
		table:  table,
		rules:  DefaultLayoutRules,
		config: cfg,
	}, nil
}

// Vocabulary returns the class vocabulary.
func (p *Pipeline) Vocabulary() *models.Vocabulary {
	return p.vocab
}

// Thresholds returns the resolved threshold table.
func (p *Pipeline) Thresholds() *ThresholdTable {
	return p.table
}

// Config returns the threshold configuration the pipeline was built from.
func (p *Pipeline) Config() ThresholdConfig {
	return p.config
}

// Run validates a detector batch, filters it by class confidence and applies
// the layout rules.
//
// Arguments:
//   - raw: The detector output in original image pixels.
//   - width, height: The image dimensions in pixels.
//
// Returns:
//   - *Result: The final regions and per-stage counts.
//   - error: ErrInvalidDetection / ErrInvalidImageSize for malformed input,
//     ErrClassOutOfRange for a vocabulary/model mismatch.
func (p *Pipeline) Run(raw []RawDetection, width, height int) (*Result, error) {
	regions, err := BuildRegions(raw, p.vocab, width, height)
	if err != nil {
		return nil, err
	}

	filtered, err := Filter(regions, p.table)
	if err != nil {
		return nil, err
	}

	final := applyRules(p.rules, filtered, width, height)

	return &Result{
		Regions: final,
		Stats: Stats{
			Raw:      len(raw),
			Filtered: len(filtered),
			Final:    len(final),
		},
	}, nil
}
