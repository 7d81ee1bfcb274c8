package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-layout/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold  float64 // Overlap threshold for suppression.
	ClassAware    bool    // If true, suppress only within same class.
	MaxDetections int     // Upper bound on kept detections; 0 keeps all.
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Detections are ordered by descending confidence (stable on ties), then each
// kept anchor suppresses the lower-scored boxes it overlaps by more than the
// threshold.
//
// Arguments:
//   - detections: Candidate detections. The slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest confidence first.
func ApplyGreedyNMS(detections []RawDetection, config NMSConfig) []RawDetection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]RawDetection, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	filtered := make([]RawDetection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.ClassID != sorted[j].ClassID {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.BoxIoU(anchor.Box(), sorted[j].Box()) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
