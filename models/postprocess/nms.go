package postprocess

import (
	"sort"

	"github.com/nvr-ai/verch-scan/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold  float32 // Overlap above which the lower-scored box is suppressed.
	ClassAware    bool    // If true, suppress only within same class.
	MaxDetections int     // Cap on kept results. 0 means unlimited.
}

// DefaultNMSConfig matches the Ultralytics predictor defaults.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.7, ClassAware: true, MaxDetections: 300}
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The input is sorted in place by descending score; ties keep their input
// order.
//
// Arguments:
//   - detections: The candidate detections.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest score first. Nil if no detections are provided.
func ApplyGreedyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if config.MaxDetections > 0 && len(filtered) >= config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
