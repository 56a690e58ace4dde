package camera

import (
	"fmt"
	"time"
)

// ColorOrder is the channel order of packed 8-bit, 3-channel pixels.
type ColorOrder int

const (
	// BGR is OpenCV's native order.
	BGR ColorOrder = iota
	// RGB is the order landmark detectors expect.
	RGB
)

// String returns the order name.
func (o ColorOrder) String() string {
	switch o {
	case BGR:
		return "bgr"
	case RGB:
		return "rgb"
	default:
		return fmt.Sprintf("ColorOrder(%d)", int(o))
	}
}

// BytesPerPixel is the packed pixel size of every frame.
const BytesPerPixel = 3

// Frame is a single camera image.
// Frames are consumed within one loop iteration and never retained.
type Frame struct {
	Width     int
	Height    int
	Order     ColorOrder
	Pix       []byte // Tightly packed rows, 3 bytes per pixel
	Seq       uint64 // Read counter assigned by the source
	Timestamp time.Time
}

// Stride returns the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * BytesPerPixel
}

// Valid reports whether the pixel buffer matches the frame size.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*BytesPerPixel
}

// Convert returns f in the requested channel order.
// The input frame is never modified; a new pixel buffer is allocated when a
// swap is needed.
func Convert(f Frame, order ColorOrder) Frame {
	if f.Order == order {
		return f
	}

	out := f
	out.Order = order
	out.Pix = make([]byte, len(f.Pix))

	// BGR and RGB differ only by swapping the first and third channel.
	for i := 0; i+2 < len(f.Pix); i += BytesPerPixel {
		out.Pix[i] = f.Pix[i+2]
		out.Pix[i+1] = f.Pix[i+1]
		out.Pix[i+2] = f.Pix[i]
	}
	return out
}
