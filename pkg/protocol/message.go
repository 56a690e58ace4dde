// Package protocol defines the length-prefixed binary framing used to stream
// gaze points to a parent process.
//
// Each message is 12 bytes:
//
//	[4 bytes uint32 big-endian length = 8][4 bytes float32 x][4 bytes float32 y]
//
// The length header is always big-endian. The float payload uses the byte
// order chosen at session start (little-endian by default). Receivers depend
// on this mixed layout, so it must not change.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

const (
	// HeaderSize is the size of the big-endian length prefix.
	HeaderSize = 4
	// PayloadSize is the size of the x/y float32 pair.
	PayloadSize = 8
	// MessageSize is the total size of one framed gaze point.
	MessageSize = HeaderSize + PayloadSize
)

var (
	// ErrBadLength is returned when a header does not announce an 8-byte payload.
	ErrBadLength = errors.New("protocol: unexpected payload length")

	// ErrShortMessage is returned when fewer than MessageSize bytes are supplied.
	ErrShortMessage = errors.New("protocol: short message")
)

// DefaultPayloadOrder is the byte order of the float payload.
var DefaultPayloadOrder binary.ByteOrder = binary.LittleEndian

// AppendMessage appends the framed encoding of p to dst.
func AppendMessage(dst []byte, p gaze.Point, order binary.ByteOrder) []byte {
	dst = binary.BigEndian.AppendUint32(dst, PayloadSize)
	dst = appendFloat32(dst, float32(p.X), order)
	dst = appendFloat32(dst, float32(p.Y), order)
	return dst
}

// Encode returns the framed encoding of p.
func Encode(p gaze.Point, order binary.ByteOrder) []byte {
	return AppendMessage(make([]byte, 0, MessageSize), p, order)
}

// Decode parses one framed message from the start of b.
func Decode(b []byte, order binary.ByteOrder) (gaze.Point, error) {
	if len(b) < MessageSize {
		return gaze.Point{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortMessage, len(b), MessageSize)
	}
	if n := binary.BigEndian.Uint32(b[:HeaderSize]); n != PayloadSize {
		return gaze.Point{}, fmt.Errorf("%w: %d", ErrBadLength, n)
	}
	return decodePayload(b[HeaderSize:MessageSize], order), nil
}

func decodePayload(b []byte, order binary.ByteOrder) gaze.Point {
	return gaze.Point{
		X: float64(math.Float32frombits(order.Uint32(b[0:4]))),
		Y: float64(math.Float32frombits(order.Uint32(b[4:8]))),
	}
}

func appendFloat32(dst []byte, v float32, order binary.ByteOrder) []byte {
	switch o := order.(type) {
	case binary.AppendByteOrder:
		return o.AppendUint32(dst, math.Float32bits(v))
	default:
		var b [4]byte
		order.PutUint32(b[:], math.Float32bits(v))
		return append(dst, b[:]...)
	}
}

// ParseByteOrder maps "little", "big" or "native" to a byte order.
// An empty string selects DefaultPayloadOrder.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "":
		return DefaultPayloadOrder, nil
	case "little", "le", "little-endian":
		return binary.LittleEndian, nil
	case "big", "be", "big-endian":
		return binary.BigEndian, nil
	case "native":
		return binary.NativeEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order: %s", name)
	}
}
