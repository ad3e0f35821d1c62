// Package config holds the immutable option set threaded through every
// component constructor in the depth-map estimation and fusion core,
// mirroring the way motionplan's planners take an options struct rather than
// reading process-wide global state.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// FusionMode selects the depth-map fusion backend at the driver level.
type FusionMode int

const (
	// FusionModeSGM selects an external semi-global-matching backend.
	FusionModeSGM FusionMode = -1
	// FusionModePatchMatch selects this repository's PatchMatch backend.
	FusionModePatchMatch FusionMode = 0
)

// AggregationMode selects how per-target NCC scores are combined into a
// single aggregate score in the PatchMatch estimator.
type AggregationMode int

const (
	// AggregationNthBest keeps the N-th best (lowest ZNCC) score. Default.
	AggregationNthBest AggregationMode = iota
	// AggregationMean averages scores across all targets.
	AggregationMean
	// AggregationMin keeps the single best score across all targets.
	AggregationMin
	// AggregationBottomKSum sums the k best (lowest) scores.
	AggregationBottomKSum
)

// Optimize is a bitfield of post-estimation steps to run on a depth map.
type Optimize uint8

const (
	// OptimizeNone runs no post-processing.
	OptimizeNone Optimize = 0
	// OptimizeOptimize runs the geometric-consistency refinement pass.
	OptimizeOptimize Optimize = 1 << 0
	// OptimizeRemoveSpeckles runs RemoveSmallSegments.
	OptimizeRemoveSpeckles Optimize = 1 << 1
	// OptimizeFillGaps runs GapInterpolation.
	OptimizeFillGaps Optimize = 1 << 2
)

// Options holds every tunable enumerated in the core's external-interfaces
// section. A value is constructed once (Default, or decoded from a JSON
// config file) at pipeline start and never mutated afterward; it is passed
// by value (or as a pointer-to-immutable-struct) to every component
// constructor, the same pattern PinholeCameraIntrinsics uses for its own
// JSON-file configuration in rimage/transform.
type Options struct {
	// View selection.
	NMinViews           int     `json:"nMinViews"`
	NMinViewsTrustPoint int     `json:"nMinViewsTrustPoint"`
	NMaxViews           int     `json:"nMaxViews"`
	FMinArea            float64 `json:"fMinArea"`
	FMinAngle           float64 `json:"fMinAngle"`
	FMaxAngle           float64 `json:"fMaxAngle"`
	FOptimAngle         float64 `json:"fOptimAngle"`
	FViewMinScore       float64 `json:"fViewMinScore"`
	FViewMinScoreRatio  float64 `json:"fViewMinScoreRatio"`

	// PatchMatch estimator.
	NEstimationIters         int             `json:"nEstimationIters"`
	NEstimationGeometricIter int             `json:"nEstimationGeometricIter"`
	FNCCThresholdKeep        float64         `json:"fNCCThresholdKeep"`
	AggregationMode          AggregationMode `json:"aggregationMode"`

	// Post-processing.
	NSpeckleSize         int     `json:"nSpeckleSize"`
	NIpolGapSize         int     `json:"nIpolGapSize"`
	FDepthDiffThreshold  float64 `json:"fDepthDiffThreshold"`
	FNormalDiffThreshold float64 `json:"fNormalDiffThreshold"`

	// Cross-view filter.
	NMinViewsFilter       int  `json:"nMinViewsFilter"`
	NMinViewsFilterAdjust int  `json:"nMinViewsFilterAdjust"`
	BFilterAdjust         bool `json:"bFilterAdjust"`

	// Fusion.
	NMinViewsFuse int         `json:"nMinViewsFuse"`
	FusionMode    FusionMode  `json:"fusionMode"`

	// Visibility filter.
	NThRemoveVisibility int `json:"nThRemoveVisibility"`

	// Driver / optimization bitfield.
	NOptimize        Optimize `json:"nOptimize"`
	NEstimateNormals int      `json:"nEstimateNormals"`
	NIgnoreMaskLabel int      `json:"nIgnoreMaskLabel"`

	// Concurrency.
	NMaxThreads int `json:"nMaxThreads"`
}

// Default returns the OpenMVS option defaults recovered from
// original_source/SceneDensify.cpp. The fixed depth-diff multipliers 0.7
// (speckle removal) and 0.8/1.2 (strict filter near/far), the 75%/65%
// good-ratio thresholds, and the admission semaphore weight of 1 are not
// Options fields: they are constants in the components that use them.
func Default() Options {
	return Options{
		NMinViews:           2,
		NMinViewsTrustPoint: 2,
		NMaxViews:           12,
		FMinArea:            0.05,
		FMinAngle:           3,
		FMaxAngle:           45,
		FOptimAngle:         12,
		FViewMinScore:       2,
		FViewMinScoreRatio:  0.3,

		NEstimationIters:         3,
		NEstimationGeometricIter: 0,
		FNCCThresholdKeep:        0.55,
		AggregationMode:          AggregationNthBest,

		NSpeckleSize:         16,
		NIpolGapSize:         7,
		FDepthDiffThreshold:  0.01,
		FNormalDiffThreshold: 25,

		NMinViewsFilter:       2,
		NMinViewsFilterAdjust: 1,
		BFilterAdjust:         true,

		NMinViewsFuse: 2,
		FusionMode:    FusionModePatchMatch,

		NThRemoveVisibility: 2,

		NOptimize:        OptimizeRemoveSpeckles | OptimizeFillGaps,
		NEstimateNormals: 1,
		NIgnoreMaskLabel: -1,

		NMaxThreads: 1,
	}
}

// Load decodes an Options value from a JSON file, following the convention
// PinholeCameraIntrinsics uses for its own JSON config files.
func Load(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, errors.Wrap(err, "opening config file")
	}
	defer f.Close()

	opts := Default()
	if err := json.NewDecoder(f).Decode(&opts); err != nil {
		return Options{}, errors.Wrap(err, "decoding config file")
	}
	return opts, nil
}
