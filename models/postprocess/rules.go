package postprocess

import (
	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/models"
)

const (
	// HeaderTopBand is the fraction of the image height a Header must start in.
	HeaderTopBand = 0.10
	// TitleTextIoUThreshold is the overlap above which a Text loses to a Title.
	TitleTextIoUThreshold = 0.5
)

// LayoutRule is one consistency rule applied to a filtered region set.
type LayoutRule interface {
	// Name identifies the rule in logs.
	Name() string
	// Apply returns the regions that survive the rule, in input order.
	Apply(regions []Region, width, height int) []Region
}

// HeaderRule drops Header regions whose top edge is below the top band of the page.
type HeaderRule struct {
	// TopBand is the fraction of the image height, from the top, a Header must start in.
	TopBand float64
}

// Name implements LayoutRule.
func (HeaderRule) Name() string { return "header_top_band" }

// Apply keeps a Header only when y1 <= TopBand*height. Other classes pass through.
func (h HeaderRule) Apply(regions []Region, _, height int) []Region {
	limit := h.TopBand * float64(height)
	keep := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.ClassName == models.ClassHeader && r.Exact.Y1 > limit {
			continue
		}
		keep = append(keep, r)
	}
	return keep
}

// TitleTextRule removes Text regions that overlap a Title by more than IoUThreshold.
// Titles are never removed.
type TitleTextRule struct {
	// IoUThreshold is the exclusive overlap limit.
	IoUThreshold float64
}

// Name implements LayoutRule.
func (TitleTextRule) Name() string { return "title_text_overlap" }

// Apply runs in two passes. The first compares every Title with every Text
// and collects the positions of Texts over the limit against any Title. The
// second rebuilds the slice without them.
func (tt TitleTextRule) Apply(regions []Region, _, _ int) []Region {
	var titles, texts []int
	for i, r := range regions {
		switch r.ClassName {
		case models.ClassTitle:
			titles = append(titles, i)
		case models.ClassText:
			texts = append(texts, i)
		}
	}
	if len(titles) == 0 || len(texts) == 0 {
		return regions
	}

	drop := make(map[int]struct{})
	for _, ti := range titles {
		for _, xi := range texts {
			if _, ok := drop[xi]; ok {
				continue
			}
			if images.BoxIoU(regions[ti].Exact, regions[xi].Exact) > tt.IoUThreshold {
				drop[xi] = struct{}{}
			}
		}
	}
	if len(drop) == 0 {
		return regions
	}

	keep := make([]Region, 0, len(regions)-len(drop))
	for i, r := range regions {
		if _, ok := drop[i]; ok {
			continue
		}
		keep = append(keep, r)
	}
	return keep
}

// DefaultLayoutRules are the rules applied by ApplyLayoutRules, in order.
var DefaultLayoutRules = []LayoutRule{
	HeaderRule{TopBand: HeaderTopBand},
	TitleTextRule{IoUThreshold: TitleTextIoUThreshold},
}

// ApplyLayoutRules runs the default rules over a filtered region set.
//
// Arguments:
//   - regions: The filtered regions. The slice is not modified.
//   - width, height: The image dimensions in pixels.
//
// Returns:
//   - []Region: The final regions in input order.
func ApplyLayoutRules(regions []Region, width, height int) []Region {
	return applyRules(DefaultLayoutRules, regions, width, height)
}

func applyRules(rules []LayoutRule, regions []Region, width, height int) []Region {
	if len(regions) == 0 {
		return []Region{}
	}
	for _, rule := range rules {
		regions = rule.Apply(regions, width, height)
	}
	return regions
}
