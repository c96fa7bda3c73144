// Package motion converts raw frames into a scalar motion score by comparing
// each frame against a remembered reference of the previous one.
package motion

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/sajided/sparkEye/internal/types"
)

// ErrInvalidFrame is returned when a frame is empty or malformed. The tick
// loop skips the sample and continues on the next frame.
var ErrInvalidFrame = errors.New("invalid frame")

// SentinelScore is reported on the first frame, before a reference exists.
// It is far above any sane motion threshold and forces the MOVING phase.
const SentinelScore = 100000

const (
	defaultIntensityDelta = 25
	defaultBlurRadius     = 10
	defaultAnalysisWidth  = 640
)

// Scorer computes per-frame motion scores. Motion is measured frame-to-frame:
// the reference is always replaced with the current smoothed frame, never held
// at a fixed baseline. Not safe for concurrent use; the tick loop owns it.
type Scorer struct {
	intensityDelta uint8
	blurRadius     int
	analysisWidth  int

	reference *image.Gray
}

// NewScorer returns a scorer with the prototype's tuning: intensity delta 25,
// smoothing comparable to a 21x21 Gaussian, analysis capped at 640px wide.
func NewScorer() *Scorer {
	return &Scorer{
		intensityDelta: defaultIntensityDelta,
		blurRadius:     defaultBlurRadius,
		analysisWidth:  defaultAnalysisWidth,
	}
}

// Score returns the number of pixels that changed materially since the
// previous frame. The first call returns SentinelScore.
func (s *Scorer) Score(frame *types.Frame) (float64, error) {
	if frame == nil || !frame.Valid() {
		return 0, fmt.Errorf("%w: empty or short frame buffer", ErrInvalidFrame)
	}

	gray := s.grayscale(frame)
	boxBlur(gray, s.blurRadius)

	ref := s.reference
	s.reference = gray

	// No reference yet, or the source changed resolution (e.g. reconnect):
	// nothing to diff against.
	if ref == nil || !ref.Rect.Eq(gray.Rect) {
		return SentinelScore, nil
	}

	changed := 0
	for i := range gray.Pix {
		d := int(gray.Pix[i]) - int(ref.Pix[i])
		if d < 0 {
			d = -d
		}
		if d > int(s.intensityDelta) {
			changed++
		}
	}
	return float64(changed), nil
}

// Reset discards the reference; the next Score returns SentinelScore.
func (s *Scorer) Reset() {
	s.reference = nil
}

// grayscale converts the RGB24 frame to a grayscale image, downscaling wide
// frames so scores stay comparable across capture resolutions.
func (s *Scorer) grayscale(frame *types.Frame) *image.Gray {
	if frame.Width > s.analysisWidth {
		h := frame.Height * s.analysisWidth / frame.Width
		dst := image.NewGray(image.Rect(0, 0, s.analysisWidth, h))
		draw.ApproxBiLinear.Scale(dst, dst.Rect, frame.ToRGBA(), image.Rect(0, 0, frame.Width, frame.Height), draw.Src, nil)
		return dst
	}

	dst := image.NewGray(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		src := y * frame.Width * 3
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < frame.Width; x++ {
			r := int(frame.Data[src+0])
			g := int(frame.Data[src+1])
			b := int(frame.Data[src+2])
			row[x] = uint8((299*r + 587*g + 114*b) / 1000)
			src += 3
		}
	}
	return dst
}

// boxBlur applies a separable box filter in place. Two passes with radius 10
// approximate the 21x21 Gaussian the prototype used for noise suppression.
func boxBlur(img *image.Gray, radius int) {
	if radius <= 0 {
		return
	}
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	tmp := make([]uint8, len(img.Pix))

	// Horizontal pass: img -> tmp
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		out := tmp[y*img.Stride : y*img.Stride+w]
		sum := 0
		lo, hi := 0, 0 // window is [lo, hi)
		for hi < radius+1 && hi < w {
			sum += int(row[hi])
			hi++
		}
		for x := 0; x < w; x++ {
			out[x] = uint8(sum / (hi - lo))
			if x+radius+1 < w {
				sum += int(row[x+radius+1])
				hi++
			}
			if x-radius >= 0 {
				sum -= int(row[x-radius])
				lo++
			}
		}
	}

	// Vertical pass: tmp -> img
	for x := 0; x < w; x++ {
		sum := 0
		lo, hi := 0, 0
		for hi < radius+1 && hi < h {
			sum += int(tmp[hi*img.Stride+x])
			hi++
		}
		for y := 0; y < h; y++ {
			img.Pix[y*img.Stride+x] = uint8(sum / (hi - lo))
			if y+radius+1 < h {
				sum += int(tmp[(y+radius+1)*img.Stride+x])
				hi++
			}
			if y-radius >= 0 {
				sum -= int(tmp[(y-radius)*img.Stride+x])
				lo++
			}
		}
	}
}
