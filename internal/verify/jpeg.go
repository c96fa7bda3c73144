package verify

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/sajided/sparkEye/internal/types"
)

// EncodeJPEG encodes a frame for the verifier request payload.
func EncodeJPEG(frame *types.Frame) ([]byte, error) {
	if frame == nil || !frame.Valid() {
		return nil, fmt.Errorf("cannot encode invalid frame")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.ToRGBA(), &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
