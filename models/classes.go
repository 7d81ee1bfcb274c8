package models

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Layout class names the post-processing rules refer to.
const (
	ClassHeader = "Header"
	ClassTitle  = "Title"
	ClassText   = "Text"
)

// ErrInvalidVocabulary is returned when a class list cannot back a detector.
var ErrInvalidVocabulary = errors.New("invalid class vocabulary")

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// Vocabulary is the ordered, immutable list of class names a detector emits.
// Class ids are 0-based indexes into it.
type Vocabulary struct {
	classes   []OutputClass
	nameToIdx map[string]int
}

// NewVocabulary builds a vocabulary from ordered class names.
//
// Arguments:
//   - names: Class names, where names[i] is the label of class id i.
//
// Returns:
//   - *Vocabulary: The vocabulary.
//   - error: ErrInvalidVocabulary when names is empty, holds a blank name or a duplicate.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, errors.Wrap(ErrInvalidVocabulary, "no class names")
	}

	v := &Vocabulary{
		classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, errors.Wrapf(ErrInvalidVocabulary, "class %d has an empty name", i)
		}
		if prev, ok := v.nameToIdx[name]; ok {
			return nil, errors.Wrapf(ErrInvalidVocabulary, "class %q listed at %d and %d", name, prev, i)
		}
		v.classes[i] = OutputClass{Index: i, Name: name}
		v.nameToIdx[name] = i
	}
	return v, nil
}

// Len returns the number of classes.
func (v *Vocabulary) Len() int {
	return len(v.classes)
}

// Name returns the label for a class id and whether the id is in range.
func (v *Vocabulary) Name(idx int) (string, bool) {
	if idx < 0 || idx >= len(v.classes) {
		return "", false
	}
	return v.classes[idx].Name, true
}

// Index returns the class id for a label.
func (v *Vocabulary) Index(name string) (int, bool) {
	idx, ok := v.nameToIdx[name]
	return idx, ok
}

// Names returns a copy of the ordered class names.
func (v *Vocabulary) Names() []string {
	names := make([]string, len(v.classes))
	for i, c := range v.classes {
		names[i] = c.Name
	}
	return names
}

// Classes returns a copy of the ordered classes.
func (v *Vocabulary) Classes() []OutputClass {
	out := make([]OutputClass, len(v.classes))
	copy(out, v.classes)
	return out
}

// DocLayoutClasses is the class list of the document layout model this
// service ships with. It is used when no dataset file is configured.
var DocLayoutClasses = []string{
	"Caption",
	"Check-box",
	"Footer",
	"Header",
	"Image",
	"Keyvalue",
	"List-item",
	"Stamp or Signature",
	"Table",
	"Text",
	"Title",
}

// datasetFile mirrors the parts of an Ultralytics dataset YAML we read.
type datasetFile struct {
	Names yaml.Node `yaml:"names"`
}

// LoadVocabulary reads the class names from an Ultralytics dataset YAML file.
//
// The `names` key may be a sequence (`names: [Title, Text]`) or an
// index-keyed mapping (`names: {0: Title, 1: Text}`). Mapping keys must be
// the contiguous ids 0..n-1.
//
// Arguments:
//   - path: Path to the data.yaml file.
//
// Returns:
//   - *Vocabulary: The loaded vocabulary.
//   - error: An error if the file cannot be read or does not describe a valid class list.
func LoadVocabulary(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset file %s", path)
	}

	names, err := ParseVocabulary(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse dataset file %s", path)
	}
	return NewVocabulary(names)
}

// ParseVocabulary extracts ordered class names from dataset YAML bytes.
func ParseVocabulary(raw []byte) ([]string, error) {
	var file datasetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	switch file.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := file.Names.Decode(&names); err != nil {
			return nil, errors.Wrap(err, "decode names list")
		}
		return names, nil
	case yaml.MappingNode:
		var byIdx map[int]string
		if err := file.Names.Decode(&byIdx); err != nil {
			return nil, errors.Wrap(err, "decode names map")
		}
		keys := make([]int, 0, len(byIdx))
		for k := range byIdx {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		names := make([]string, len(keys))
		for i, k := range keys {
			if k != i {
				return nil, errors.Wrapf(ErrInvalidVocabulary, "names map is missing id %d", i)
			}
			names[i] = byIdx[k]
		}
		return names, nil
	case 0:
		return nil, errors.Wrap(ErrInvalidVocabulary, "missing names key")
	default:
		return nil, errors.Wrap(ErrInvalidVocabulary, "names must be a list or an id map")
	}
}
