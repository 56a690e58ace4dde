package hub

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

func quietHub() *Hub {
	return New("test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	h := quietHub()
	ctx, cancel := context.WithCancel(context.Background())

	go h.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("hub never started")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if h.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := quietHub() // Not running, so nothing drains the channel

	for i := 0; i < 300; i++ {
		if err := h.BroadcastJSON(map[string]int{"i": i}); err != nil {
			t.Fatalf("BroadcastJSON() error = %v", err)
		}
	}

	if got := h.Dropped(); got != 300-256 {
		t.Errorf("Dropped() = %d, want %d", got, 300-256)
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d", h.ClientCount())
	}
}

func TestHub_BroadcastJSONError(t *testing.T) {
	h := quietHub()
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("expected error for unencodable value")
	}
}

func TestNewClient_StoppedHub(t *testing.T) {
	h := quietHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	if c := NewClient(h, nil); c != nil {
		t.Error("NewClient() on stopped hub should return nil")
	}
}

type written struct {
	op   int
	data []byte
}

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	writes    chan written
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan written, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(op int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.writes <- written{op, append([]byte(nil), data...)}
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClient_ReceivesBroadcasts(t *testing.T) {
	h := quietHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	fc := newFakeConn()
	c := NewClient(h, fc)
	if c == nil {
		t.Fatal("NewClient() = nil")
	}
	if c.ID() == "" {
		t.Error("client has no ID")
	}
	served := make(chan struct{})
	go func() {
		c.Serve()
		close(served)
	}()
	waitFor(t, "registration", func() bool { return h.ClientCount() == 1 })

	tests := []struct {
		name   string
		send   func()
		wantOp int
		want   []byte
	}{
		{"binary", func() { h.BroadcastBinary([]byte{0, 0, 0, 8}) }, websocket.BinaryMessage, []byte{0, 0, 0, 8}},
		{"json", func() { h.BroadcastJSON(map[string]int{"a": 1}) }, websocket.TextMessage, []byte(`{"a":1}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			select {
			case w := <-fc.writes:
				if w.op != tt.wantOp || !bytes.Equal(w.data, tt.want) {
					t.Errorf("wrote (%d, %q), want (%d, %q)", w.op, w.data, tt.wantOp, tt.want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("no write")
			}
		})
	}

	fc.Close()
	<-served
	waitFor(t, "unregistration", func() bool { return h.ClientCount() == 0 })
	waitFor(t, "sent count", func() bool { return c.Sent() == 2 })
}

func TestHub_StopClosesClients(t *testing.T) {
	h := quietHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	fc := newFakeConn()
	c := NewClient(h, fc)
	go c.Serve()
	waitFor(t, "registration", func() bool { return h.ClientCount() == 1 })

	cancel()
	<-h.Done()

	select {
	case w := <-fc.writes:
		if w.op != websocket.CloseMessage {
			t.Errorf("first write op = %d, want close", w.op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client was not sent a close frame")
	}
}
