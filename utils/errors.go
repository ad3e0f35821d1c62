package utils

import "github.com/pkg/errors"

// Sentinel error kinds from the core's error handling design. Components
// wrap one of these with errors.Wrap so callers can classify a failure with
// errors.Is while still getting a descriptive message.
var (
	// ErrViewSelectionInsufficient means fewer than two viable neighbor
	// views remained after filtering.
	ErrViewSelectionInsufficient = errors.New("fewer than two viable neighbor views")
	// ErrImageLoadFailed means a color or grayscale image could not be
	// loaded or resized.
	ErrImageLoadFailed = errors.New("image load failed")
	// ErrDepthMapIOFailed means a depth-map file could not be read or
	// written.
	ErrDepthMapIOFailed = errors.New("depth-map I/O failed")
	// ErrFilterPrerequisitesUnmet means too few calibrated images are
	// available to run the cross-view filter.
	ErrFilterPrerequisitesUnmet = errors.New("not enough calibrated images for filtering")
	// ErrBackendFailed means a non-CPU depth-map estimator backend
	// (GPU PatchMatch, external SGM) was requested but is unavailable.
	ErrBackendFailed = errors.New("depth-map estimator backend failed")
	// ErrFatal means an invariant the pipeline relies on was violated, e.g.
	// a loaded depth map's dimensions do not match its image.
	ErrFatal = errors.New("fatal invariant violation")
)

// NewUnexpectedTypeError is used when there is a type mismatch, mirroring
// the teacher's rdk/utils.NewUnexpectedTypeError.
func NewUnexpectedTypeError(expected, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}
