// Package gaze derives a 2-D gaze point from facial landmarks.
package gaze

// Face mesh landmark indices used for gaze estimation.
// These follow the MediaPipe face mesh topology.
const (
	LeftEyeOuter  = 33  // Outer corner of the left eye
	RightEyeOuter = 263 // Outer corner of the right eye
)

// Mesh topology sizes.
const (
	MeshLandmarks        = 468 // Base face mesh
	RefinedMeshLandmarks = 478 // Base mesh plus 10 iris points
)

// Landmark is a single face landmark in normalized image coordinates.
// X and Y are in [0,1] relative to image width and height.
// Z is relative depth and is unused by the estimator.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet holds the landmarks of one detected face.
// The slice index is the landmark identifier and is stable for a detector session.
type LandmarkSet struct {
	Points []Landmark `json:"points"`
	Score  float64    `json:"score"` // Face presence confidence (0-1)
}

// Len returns the number of landmarks in the set.
func (s LandmarkSet) Len() int {
	return len(s.Points)
}

// At returns the landmark at index i and whether it exists.
func (s LandmarkSet) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(s.Points) {
		return Landmark{}, false
	}
	return s.Points[i], true
}

// Bounds returns the normalized bounding box of all landmarks.
func (s LandmarkSet) Bounds() (minX, minY, maxX, maxY float64) {
	if len(s.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = s.Points[0].X, s.Points[0].Y
	maxX, maxY = minX, minY
	for _, p := range s.Points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// Point is an estimated gaze position in normalized image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
