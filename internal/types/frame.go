package types

import (
	"image"
	"time"
)

// Frame represents a single video frame in packed RGB24 format.
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame was captured/decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the frame data (RGB24, 3 bytes per pixel, row-major)
	Data []byte
	// SourceStream identifies the producing source (webcam, mock)
	SourceStream string
	// TraceID is a unique identifier for tracing a frame across the pipeline
	TraceID string
}

// Valid reports whether the frame carries a complete RGB24 buffer.
func (f *Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) >= f.Width*f.Height*3
}

// ToRGBA converts the packed RGB24 buffer into an image.RGBA.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := y * f.Width * 3
		dst := y * img.Stride
		for x := 0; x < f.Width; x++ {
			img.Pix[dst+0] = f.Data[src+0]
			img.Pix[dst+1] = f.Data[src+1]
			img.Pix[dst+2] = f.Data[src+2]
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return img
}

// MirrorHorizontal flips the frame in place around its vertical axis.
// The original prototype mirrored the preview for better hand-eye UX.
func (f *Frame) MirrorHorizontal() {
	rowLen := f.Width * 3
	for y := 0; y < f.Height; y++ {
		row := f.Data[y*rowLen : y*rowLen+rowLen]
		for l, r := 0, f.Width-1; l < r; l, r = l+1, r-1 {
			li, ri := l*3, r*3
			row[li], row[ri] = row[ri], row[li]
			row[li+1], row[ri+1] = row[ri+1], row[li+1]
			row[li+2], row[ri+2] = row[ri+2], row[li+2]
		}
	}
}

// StreamStats contains frame source statistics.
type StreamStats struct {
	FrameCount   uint64
	FPSTarget    int
	FPSReal      float64
	SourceStream string
	Resolution   string
	Reconnects   uint32
	Drops        uint64
	IsConnected  bool
}
