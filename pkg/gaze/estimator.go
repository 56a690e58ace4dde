package gaze

import (
	"errors"
	"fmt"
)

// ErrMissingLandmark is returned when a landmark set lacks a required index.
// The detector guarantees complete sets, so this is a contract violation.
var ErrMissingLandmark = errors.New("gaze: required landmark missing")

// Estimator maps a landmark set to a gaze point by averaging two eye corners.
// It holds no per-call state and is safe for concurrent use.
type Estimator struct {
	left  int
	right int
}

// NewEstimator returns an estimator using the outer eye corners of the face mesh.
func NewEstimator() *Estimator {
	return &Estimator{left: LeftEyeOuter, right: RightEyeOuter}
}

// NewEstimatorWithIndices returns an estimator for a different landmark topology.
func NewEstimatorWithIndices(left, right int) *Estimator {
	return &Estimator{left: left, right: right}
}

// Indices returns the left and right landmark indices.
func (e *Estimator) Indices() (left, right int) {
	return e.left, e.right
}

// Estimate returns the mean of the two eye corners.
// Coordinates stay in the normalized space of the input.
func (e *Estimator) Estimate(set LandmarkSet) (Point, error) {
	l, ok := set.At(e.left)
	if !ok {
		return Point{}, fmt.Errorf("%w: index %d (set has %d points)", ErrMissingLandmark, e.left, set.Len())
	}
	r, ok := set.At(e.right)
	if !ok {
		return Point{}, fmt.Errorf("%w: index %d (set has %d points)", ErrMissingLandmark, e.right, set.Len())
	}

	return Point{
		X: (l.X + r.X) / 2,
		Y: (l.Y + r.Y) / 2,
	}, nil
}
