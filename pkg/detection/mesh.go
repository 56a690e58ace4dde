//go:build !nogocv

package detection

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// MeshDetector finds faces with OpenCV's FaceDetectorYN and runs a face mesh
// ONNX model on each face region. Regions from the previous frame are reused
// while the mesh presence score stays above MinTrackingConfidence.
type MeshDetector struct {
	faces     gocv.FaceDetectorYN
	net       gocv.Net
	outputs   []string
	inputSize int
	expected  int
	config    Config
	logger    *slog.Logger

	mu     sync.Mutex // Protects inference and tracks
	tracks []image.Rectangle
	closed bool
}

// NewMesh loads the face detection and mesh models.
func NewMesh(cfg Config, logger *slog.Logger) (*MeshDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	meshPath, inputSize := cfg.MeshModel()
	for _, p := range []string{cfg.FaceModelPath, meshPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, p)
		}
	}

	net := gocv.ReadNetFromONNX(meshPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load mesh model: %s", meshPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	names := net.GetLayerNames()
	var outputs []string
	for _, id := range net.GetUnconnectedOutLayers() {
		outputs = append(outputs, names[id-1])
	}

	faces := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModelPath,
		"",
		image.Pt(320, 320), // Updated per frame
		float32(cfg.MinDetectionConfidence),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	logger.Info("mesh detector ready",
		"face_model", cfg.FaceModelPath,
		"mesh_model", meshPath,
		"input_size", inputSize,
		"outputs", outputs,
	)

	return &MeshDetector{
		faces:     faces,
		net:       net,
		outputs:   outputs,
		inputSize: inputSize,
		expected:  cfg.ExpectedLandmarks(),
		config:    cfg,
		logger:    logger,
	}, nil
}

// Detect finds up to MaxFaces faces in an RGB frame.
func (d *MeshDetector) Detect(frame camera.Frame) ([]gaze.LandmarkSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}
	if !frame.Valid() {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidFrame, frame.Width, frame.Height, len(frame.Pix))
	}

	rgb := camera.Convert(frame, camera.RGB)
	img, err := gocv.NewMatFromBytes(rgb.Height, rgb.Width, gocv.MatTypeCV8UC3, rgb.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer img.Close()

	regions := d.tracks
	if len(regions) < d.config.MaxFaces {
		fresh, err := d.detectFaces(img)
		if err != nil {
			return nil, err
		}
		regions = mergeTracks(regions, fresh, d.config.MaxFaces)
	}

	var sets []gaze.LandmarkSet
	var next []image.Rectangle
	for _, roi := range regions {
		set, err := d.runMesh(img, roi)
		if err != nil {
			return nil, err
		}
		if set.Score < d.config.MinTrackingConfidence {
			continue
		}
		sets = append(sets, set)
		if r, ok := squareROI(faceFromLandmarks(set), img.Cols(), img.Rows()); ok {
			next = append(next, r)
		}
	}
	d.tracks = next

	return sets, nil
}

// detectFaces returns face regions from YuNet, best score first.
func (d *MeshDetector) detectFaces(rgb gocv.Mat) ([]image.Rectangle, error) {
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	imgW, imgH := bgr.Cols(), bgr.Rows()
	d.faces.SetInputSize(image.Pt(imgW, imgH))

	out := gocv.NewMat()
	defer out.Close()
	d.faces.Detect(bgr, &out)

	// YuNet rows: 0-3 box in pixels, 4-13 five keypoints, 14 score
	found := make([]Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		found = append(found, Face{
			X:          float64(out.GetFloatAt(r, 0)) / float64(imgW),
			Y:          float64(out.GetFloatAt(r, 1)) / float64(imgH),
			W:          float64(out.GetFloatAt(r, 2)) / float64(imgW),
			H:          float64(out.GetFloatAt(r, 3)) / float64(imgH),
			Confidence: float64(out.GetFloatAt(r, 14)),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Confidence > found[j].Confidence
	})

	regions := make([]image.Rectangle, 0, len(found))
	for _, f := range found {
		if f.Confidence < d.config.MinDetectionConfidence {
			continue
		}
		if r, ok := squareROI(f, imgW, imgH); ok {
			regions = append(regions, r)
		}
	}
	return regions, nil
}

// runMesh runs the mesh model on one region and maps the result to the image.
func (d *MeshDetector) runMesh(img gocv.Mat, roi image.Rectangle) (gaze.LandmarkSet, error) {
	crop := img.Region(roi)
	defer crop.Close()

	blob := gocv.BlobFromImage(crop, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers(d.outputs)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	var coords []float32
	score := 1.0
	for i := range outs {
		data, err := outs[i].DataPtrFloat32()
		if err != nil {
			return gaze.LandmarkSet{}, fmt.Errorf("read mesh output %s: %w", d.outputs[i], err)
		}
		switch {
		case len(data) >= d.expected*3 && coords == nil:
			coords = data
		case len(data) == 1:
			score = sigmoid(float64(data[0]))
		}
	}
	if coords == nil {
		return gaze.LandmarkSet{}, fmt.Errorf("mesh model produced no %d-point output", d.expected)
	}

	imgW, imgH := img.Cols(), img.Rows()
	points := make([]gaze.Landmark, d.expected)
	for i := range points {
		points[i] = toImage(coords[i*3], coords[i*3+1], coords[i*3+2], roi, d.inputSize, imgW, imgH)
	}

	return gaze.LandmarkSet{Points: points, Score: score}, nil
}

// Close releases the models. Safe to call more than once.
func (d *MeshDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.tracks = nil
	d.faces.Close()
	return d.net.Close()
}
