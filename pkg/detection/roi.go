package detection

import (
	"image"
	"math"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// roiScale expands a face box before cropping for the mesh model.
const roiScale = 1.5

// trackOverlap is the IoU above which a fresh detection duplicates a track.
const trackOverlap = 0.5

// Face is a face bounding box in normalized coordinates (0-1).
type Face struct {
	X, Y       float64 // Top-left corner
	W, H       float64
	Confidence float64
}

// Center returns the center point of the box.
func (f Face) Center() (x, y float64) {
	return f.X + f.W/2, f.Y + f.H/2
}

// faceFromLandmarks returns the box enclosing a landmark set.
func faceFromLandmarks(set gaze.LandmarkSet) Face {
	minX, minY, maxX, maxY := set.Bounds()
	return Face{X: minX, Y: minY, W: maxX - minX, H: maxY - minY, Confidence: set.Score}
}

// squareROI returns a square pixel region centered on the face, scaled by
// roiScale and clamped to the image. ok is false when nothing is left.
func squareROI(f Face, imgW, imgH int) (image.Rectangle, bool) {
	cx, cy := f.Center()
	cx *= float64(imgW)
	cy *= float64(imgH)

	side := math.Max(f.W*float64(imgW), f.H*float64(imgH)) * roiScale
	half := side / 2

	r := image.Rect(
		int(math.Round(cx-half)),
		int(math.Round(cy-half)),
		int(math.Round(cx+half)),
		int(math.Round(cy+half)),
	).Intersect(image.Rect(0, 0, imgW, imgH))

	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// iou returns the intersection over union of two regions.
func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// toImage maps a landmark from model input space (0..inputSize) back into
// coordinates normalized to the full image. Depth uses the x scale.
func toImage(px, py, pz float32, roi image.Rectangle, inputSize, imgW, imgH int) gaze.Landmark {
	sx := float64(roi.Dx()) / float64(inputSize)
	sy := float64(roi.Dy()) / float64(inputSize)
	return gaze.Landmark{
		X: (float64(roi.Min.X) + float64(px)*sx) / float64(imgW),
		Y: (float64(roi.Min.Y) + float64(py)*sy) / float64(imgH),
		Z: float64(pz) * sx / float64(imgW),
	}
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// mergeTracks appends fresh detections that do not overlap an existing
// track, up to max regions in total.
func mergeTracks(tracks, fresh []image.Rectangle, max int) []image.Rectangle {
	out := append([]image.Rectangle(nil), tracks...)
	for _, r := range fresh {
		if len(out) >= max {
			break
		}
		dup := false
		for _, t := range out {
			if iou(r, t) > trackOverlap {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}
