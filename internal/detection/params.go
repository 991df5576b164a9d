package detection

import (
	"math"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
)

// Params configures a detection run. The zero value is not valid; start from
// DefaultParams.
type Params struct {
	// MinArea and MaxArea bound the component pixel count (px²).
	MinArea float64 `json:"min_area" toml:"min_area"`
	MaxArea float64 `json:"max_area" toml:"max_area"`

	// Shape filters, each in [0, 1]. Zero disables the filter.
	MinCircularity  float64 `json:"min_circularity" toml:"min_circularity"`
	MinConvexity    float64 `json:"min_convexity" toml:"min_convexity"`
	MinInertiaRatio float64 `json:"min_inertia_ratio" toml:"min_inertia_ratio"`

	// MinDistBetweenBlobs is the largest centroid distance (px) at which
	// components on adjacent threshold levels are treated as the same blob.
	MinDistBetweenBlobs float64 `json:"min_dist_between_blobs" toml:"min_dist_between_blobs"`

	// Threshold sweep, inclusive on both ends.
	MinThreshold int `json:"min_threshold" toml:"min_threshold"`
	MaxThreshold int `json:"max_threshold" toml:"max_threshold"`

	ApplyBlur       bool `json:"apply_blur" toml:"apply_blur"`
	ApplyMorphology bool `json:"apply_morphology" toml:"apply_morphology"`
}

// DefaultParams returns the settings used for agar plate photographs.
func DefaultParams() Params {
	return Params{
		MinArea:             144,
		MaxArea:             5000,
		MinCircularity:      0.4,
		MinConvexity:        0.8,
		MinInertiaRatio:     0.01,
		MinDistBetweenBlobs: 10,
		MinThreshold:        100,
		MaxThreshold:        160,
	}
}

// Validate reports the first field that violates its range.
func (p Params) Validate() error {
	if !isPositive(p.MinArea) {
		return apperr.InvalidParameter("min_area", "must be a positive number, got %v", p.MinArea)
	}
	if !isPositive(p.MaxArea) {
		return apperr.InvalidParameter("max_area", "must be a positive number, got %v", p.MaxArea)
	}
	if p.MinArea > p.MaxArea {
		return apperr.InvalidParameter("min_area", "must not exceed max_area (%v > %v)", p.MinArea, p.MaxArea)
	}

	unit := []struct {
		name  string
		value float64
	}{
		{"min_circularity", p.MinCircularity},
		{"min_convexity", p.MinConvexity},
		{"min_inertia_ratio", p.MinInertiaRatio},
	}
	for _, f := range unit {
		if !(f.value >= 0 && f.value <= 1) {
			return apperr.InvalidParameter(f.name, "must be in [0, 1], got %v", f.value)
		}
	}

	if !(p.MinDistBetweenBlobs >= 0) || math.IsInf(p.MinDistBetweenBlobs, 1) {
		return apperr.InvalidParameter("min_dist_between_blobs", "must be a non-negative number, got %v", p.MinDistBetweenBlobs)
	}

	if p.MinThreshold < 0 || p.MinThreshold > 255 {
		return apperr.InvalidParameter("min_threshold", "must be in [0, 255], got %d", p.MinThreshold)
	}
	if p.MaxThreshold < 0 || p.MaxThreshold > 255 {
		return apperr.InvalidParameter("max_threshold", "must be in [0, 255], got %d", p.MaxThreshold)
	}
	if p.MinThreshold > p.MaxThreshold {
		return apperr.InvalidParameter("min_threshold", "must not exceed max_threshold (%d > %d)", p.MinThreshold, p.MaxThreshold)
	}
	return nil
}

// isPositive is false for NaN and ±Inf as well as for values ≤ 0.
func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
