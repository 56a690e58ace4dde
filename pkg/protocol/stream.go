package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// EncoderOption configures an Encoder or Decoder.
type EncoderOption func(*codecOptions)

type codecOptions struct {
	order binary.ByteOrder
}

// WithPayloadOrder sets the byte order of the float payload.
func WithPayloadOrder(order binary.ByteOrder) EncoderOption {
	return func(o *codecOptions) {
		if order != nil {
			o.order = order
		}
	}
}

func buildOptions(opts []EncoderOption) codecOptions {
	o := codecOptions{order: DefaultPayloadOrder}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encoder writes framed gaze points to a stream.
// Every Encode issues a single write of the whole message followed by a flush,
// so a receiver never observes a partial message or a batched one.
type Encoder struct {
	mu    sync.Mutex
	w     *bufio.Writer
	order binary.ByteOrder
	buf   [MessageSize]byte
	err   error
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	o := buildOptions(opts)
	return &Encoder{
		w:     bufio.NewWriterSize(w, MessageSize),
		order: o.order,
	}
}

// Encode writes p as one message and flushes it.
// After the first write error all later calls return that error.
func (e *Encoder) Encode(p gaze.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return e.err
	}

	msg := AppendMessage(e.buf[:0], p, e.order)
	if _, err := e.w.Write(msg); err != nil {
		e.err = fmt.Errorf("write message: %w", err)
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = fmt.Errorf("flush message: %w", err)
		return e.err
	}
	return nil
}

// Err returns the sticky write error, if any.
func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Decoder reads framed gaze points from a stream.
type Decoder struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [MessageSize]byte
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...EncoderOption) *Decoder {
	o := buildOptions(opts)
	return &Decoder{r: r, order: o.order}
}

// Decode reads the next message.
// It returns io.EOF at a clean message boundary and io.ErrUnexpectedEOF
// when the stream ends inside a message.
func (d *Decoder) Decode() (gaze.Point, error) {
	if _, err := io.ReadFull(d.r, d.buf[:HeaderSize]); err != nil {
		return gaze.Point{}, err
	}

	n := binary.BigEndian.Uint32(d.buf[:HeaderSize])
	if n != PayloadSize {
		return gaze.Point{}, fmt.Errorf("%w: %d", ErrBadLength, n)
	}

	if _, err := io.ReadFull(d.r, d.buf[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return gaze.Point{}, err
	}

	return decodePayload(d.buf[HeaderSize:], d.order), nil
}
