package web

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/protocol"
)

func startServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return s, ln.Addr().String()
}

var httpClient = &http.Client{
	Timeout:   5 * time.Second,
	Transport: &http.Transport{DisableKeepAlives: true},
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := httpClient.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func dial(t *testing.T, s *Server, url string) *gorilla.Conn {
	t.Helper()
	before := s.Clients()

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == before {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestStatus(t *testing.T) {
	_, addr := startServer(t, Options{
		Session:  "abc",
		Camera:   "mock",
		Detector: "mesh",
		Stats: func() pipeline.Stats {
			return pipeline.Stats{Running: true, FramesRead: 42, MessagesSent: 7}
		},
	})

	var status Status
	if code := getJSON(t, "http://"+addr+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}

	if status.Session != "abc" || status.Camera != "mock" || status.Detector != "mesh" {
		t.Errorf("status = %+v", status)
	}
	if !status.Loop.Running || status.Loop.FramesRead != 42 || status.Loop.MessagesSent != 7 {
		t.Errorf("loop = %+v", status.Loop)
	}
	if status.Capture != nil {
		t.Errorf("capture = %+v, want omitted without CaptureStats", status.Capture)
	}
}

func TestStatus_CaptureStats(t *testing.T) {
	_, addr := startServer(t, Options{
		CaptureStats: func() camera.SourceStats {
			return camera.SourceStats{FramesRead: 30, ReadFailures: 2, Backend: "ffmpeg"}
		},
	})

	var status Status
	getJSON(t, "http://"+addr+"/api/status", &status)

	want := camera.SourceStats{FramesRead: 30, ReadFailures: 2, Backend: "ffmpeg"}
	if status.Capture == nil || *status.Capture != want {
		t.Errorf("capture = %+v, want %+v", status.Capture, want)
	}
}

func TestConfig(t *testing.T) {
	_, addr := startServer(t, Options{
		Config: map[string]any{"stream": map[string]any{"payload_order": "little"}},
	})

	var cfg map[string]map[string]string
	getJSON(t, "http://"+addr+"/api/config", &cfg)

	if cfg["stream"]["payload_order"] != "little" {
		t.Errorf("config = %v", cfg)
	}
}

func TestSamples_KeepsMostRecent(t *testing.T) {
	s, addr := startServer(t, Options{})

	for i := 1; i <= maxRecent+5; i++ {
		s.Publish(pipeline.Sample{Seq: uint64(i)})
	}

	var samples []pipeline.Sample
	getJSON(t, "http://"+addr+"/api/samples", &samples)

	if len(samples) != maxRecent {
		t.Fatalf("samples = %d, want %d", len(samples), maxRecent)
	}
	if samples[0].Seq != 6 || samples[len(samples)-1].Seq != maxRecent+5 {
		t.Errorf("window = %d..%d", samples[0].Seq, samples[len(samples)-1].Seq)
	}
}

func TestGazeFeed(t *testing.T) {
	s, addr := startServer(t, Options{})
	conn := dial(t, s, "ws://"+addr+"/ws/gaze")

	want := pipeline.Sample{Seq: 3, Face: 1, Point: gaze.Point{X: 0.25, Y: 0.75}}
	s.Publish(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if typ != gorilla.TextMessage {
		t.Errorf("message type = %d, want text", typ)
	}

	var got pipeline.Sample
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if got.Seq != want.Seq || got.Face != want.Face || got.Point != want.Point {
		t.Errorf("sample = %+v, want %+v", got, want)
	}
}

func TestWireFeed(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		want  []byte
	}{
		{"default", nil, []byte{0, 0, 0, 8, 0, 0, 0, 0x3f, 0, 0, 0x80, 0x3e}},
		{"little", binary.LittleEndian, []byte{0, 0, 0, 8, 0, 0, 0, 0x3f, 0, 0, 0x80, 0x3e}},
		{"big", binary.BigEndian, []byte{0, 0, 0, 8, 0x3f, 0, 0, 0, 0x3e, 0x80, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, addr := startServer(t, Options{PayloadOrder: tc.order})
			conn := dial(t, s, "ws://"+addr+"/ws/wire")

			p := gaze.Point{X: 0.5, Y: 0.25}
			s.Publish(pipeline.Sample{Point: p})

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			typ, data, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("ReadMessage() error = %v", err)
			}
			if typ != gorilla.BinaryMessage {
				t.Errorf("message type = %d, want binary", typ)
			}
			if !bytes.Equal(data, tc.want) {
				t.Errorf("wire = % x, want % x", data, tc.want)
			}

			// Same bytes as the stdout encoder with that order.
			order := tc.order
			if order == nil {
				order = protocol.DefaultPayloadOrder
			}
			var stdout bytes.Buffer
			if err := protocol.NewEncoder(&stdout, protocol.WithPayloadOrder(order)).Encode(p); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(data, stdout.Bytes()) {
				t.Errorf("wire = % x, stdout = % x", data, stdout.Bytes())
			}
		})
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	_, addr := startServer(t, Options{})

	if code := getJSON(t, "http://"+addr+"/ws/gaze", nil); code != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws/gaze = %d, want %d", code, http.StatusUpgradeRequired)
	}
}
