package detection

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Worker response status bytes
const (
	statusOK    = 0
	statusError = 1
)

// maxResponseSize bounds a single worker response.
const maxResponseSize = 16 << 20

// WorkerDetector runs landmark detection in a long-lived subprocess.
//
// Protocol, all integers big-endian:
//
//	request  (stdin): [u32 len][u32 width][u32 height][RGB bytes]
//	response (fd 3):  [u32 len][u8 status] then
//	  status 0: [u32 faces] per face [f32 score][u32 n] n x [f32 x][f32 y][f32 z]
//	  status 1: [u32 msgLen][msg]
type WorkerDetector struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	stdin  io.WriteCloser
	data   io.ReadCloser
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewWorker starts the worker subprocess. The detector configuration is
// passed as flags after cfg.WorkerCommand.
func NewWorker(cfg Config, logger *slog.Logger) (*WorkerDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.WorkerCommand) == 0 {
		return nil, errors.New("worker command is empty")
	}

	args := append(append([]string(nil), cfg.WorkerCommand[1:]...), workerFlags(cfg)...)
	cmd := exec.Command(cfg.WorkerCommand[0], args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	// Side-channel pipe for results; the child sees it as fd 3
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("landmark worker failed to start: %w", err)
	}

	// Only the child holds the write end
	w.Close()

	logger.Info("landmark worker started",
		"command", cfg.WorkerCommand[0],
		"pid", cmd.Process.Pid,
	)

	return &WorkerDetector{
		cmd:    cmd,
		stderr: stderr,
		stdin:  stdin,
		data:   r,
		config: cfg,
		logger: logger,
	}, nil
}

func workerFlags(cfg Config) []string {
	refine := "--no-refine-landmarks"
	if cfg.RefineLandmarks {
		refine = "--refine-landmarks"
	}
	return []string{
		"--max-faces", strconv.Itoa(cfg.MaxFaces),
		refine,
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinDetectionConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConfidence, 'f', -1, 64),
	}
}

// Detect sends one frame to the worker and waits for its landmarks.
func (w *WorkerDetector) Detect(frame camera.Frame) ([]gaze.LandmarkSet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrDetectorClosed
	}
	if !frame.Valid() {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidFrame, frame.Width, frame.Height, len(frame.Pix))
	}

	rgb := camera.Convert(frame, camera.RGB)
	if err := w.send(rgb); err != nil {
		return nil, fmt.Errorf("%w: send frame: %v", ErrDetectorClosed, err)
	}

	body, err := w.receive()
	if err != nil {
		return nil, fmt.Errorf("%w: read result: %v", ErrDetectorClosed, err)
	}

	sets, err := parseResponse(body)
	if err != nil {
		return nil, err
	}
	if len(sets) > w.config.MaxFaces {
		sets = sets[:w.config.MaxFaces]
	}
	return sets, nil
}

func (w *WorkerDetector) send(f camera.Frame) error {
	buf := make([]byte, 12, 12+len(f.Pix))
	binary.BigEndian.PutUint32(buf[0:4], uint32(8+len(f.Pix)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(f.Width))
	binary.BigEndian.PutUint32(buf[8:12], uint32(f.Height))
	buf = append(buf, f.Pix...)
	_, err := w.stdin.Write(buf)
	return err
}

func (w *WorkerDetector) receive() ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.data, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n == 0 || n > maxResponseSize {
		return nil, fmt.Errorf("bad response length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(w.data, body); err != nil {
		return nil, err
	}
	return body, nil
}

// parseResponse decodes a worker response body.
func parseResponse(body []byte) ([]gaze.LandmarkSet, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrDetectorClosed)
	}
	r := bytes.NewReader(body[1:])

	switch body[0] {
	case statusOK:
		var faces uint32
		if err := binary.Read(r, binary.BigEndian, &faces); err != nil {
			return nil, fmt.Errorf("%w: read face count: %v", ErrDetectorClosed, err)
		}
		sets := make([]gaze.LandmarkSet, 0, min(int(faces), 16))
		for i := uint32(0); i < faces; i++ {
			set, err := readLandmarkSet(r)
			if err != nil {
				return nil, fmt.Errorf("%w: face %d: %v", ErrDetectorClosed, i, err)
			}
			sets = append(sets, set)
		}
		return sets, nil

	case statusError:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: read error length: %v", ErrDetectorClosed, err)
		}
		if int64(n) > int64(r.Len()) {
			return nil, fmt.Errorf("%w: error message truncated", ErrDetectorClosed)
		}
		msg := make([]byte, n)
		io.ReadFull(r, msg)
		return nil, &WorkerError{Message: string(msg)}

	default:
		return nil, fmt.Errorf("%w: unknown status %d", ErrDetectorClosed, body[0])
	}
}

func readLandmarkSet(r *bytes.Reader) (gaze.LandmarkSet, error) {
	var head struct {
		Score float32
		N     uint32
	}
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return gaze.LandmarkSet{}, err
	}
	if int64(head.N)*12 > int64(r.Len()) {
		return gaze.LandmarkSet{}, fmt.Errorf("%d landmarks exceed response", head.N)
	}

	raw := make([]float32, head.N*3)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return gaze.LandmarkSet{}, err
	}

	points := make([]gaze.Landmark, head.N)
	for i := range points {
		points[i] = gaze.Landmark{
			X: float64(raw[i*3]),
			Y: float64(raw[i*3+1]),
			Z: float64(raw[i*3+2]),
		}
	}
	return gaze.LandmarkSet{Points: points, Score: float64(head.Score)}, nil
}

// Close stops the worker and waits for it to exit.
func (w *WorkerDetector) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	w.stdin.Close()
	w.data.Close()
	if w.cmd == nil {
		return nil
	}

	err := w.cmd.Wait()
	if w.stderr != nil && w.stderr.Len() > 0 {
		w.logger.Debug("landmark worker stderr", "output", w.stderr.String())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			w.logger.Warn("landmark worker exited", "code", exitErr.ExitCode())
			return nil
		}
		return err
	}
	return nil
}
