package postprocess

import (
	"testing"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/models"
	"github.com/stretchr/testify/require"
)

// testClasses is a small vocabulary: Header=0, Title=1, Text=2, Table=3, Footer=4.
var testClasses = []string{"Header", "Title", "Text", "Table", "Footer"}

func testVocabulary(t testing.TB) *models.Vocabulary {
	t.Helper()
	v, err := models.NewVocabulary(testClasses)
	require.NoError(t, err)
	return v
}

func testTable(t *testing.T, cfg ThresholdConfig) *ThresholdTable {
	t.Helper()
	table, err := NewThresholdTable(testVocabulary(t), cfg)
	require.NoError(t, err)
	return table
}

// region builds a region for the named test class; the normalized box is
// computed against a 1000x1000 page.
func region(t *testing.T, index int, class string, conf float64, x1, y1, x2, y2 int) Region {
	t.Helper()
	vocab := testVocabulary(t)
	id, ok := vocab.Index(class)
	require.Truef(t, ok, "unknown test class %q", class)
	return Region{
		Index:      index,
		ClassID:    id,
		ClassName:  class,
		Confidence: conf,
		Exact:      images.Box{X1: float64(x1), Y1: float64(y1), X2: float64(x2), Y2: float64(y2)},
		Box:        images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Normalized: images.Normalize(float64(x1), float64(y1), float64(x2), float64(y2), 1000, 1000),
	}
}

func indexes(regions []Region) []int {
	out := make([]int, len(regions))
	for i, r := range regions {
		out[i] = r.Index
	}
	return out
}
