package tokens

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"
)

// Decoding errors
var (
	ErrEmptyImage       = errors.New("image payload is empty")
	ErrInvalidDataURL   = errors.New("invalid base64 data URL")
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
)

// Decoded is an image together with the canonical bytes it was decoded from.
type Decoded struct {
	Image    image.Image
	Bytes    []byte
	MIMEType string
}

// DecodeImage accepts raw image bytes or a base64 data URL. For data URLs
// everything up to the first comma is dropped before decoding, so Bytes is
// always the raw file content.
func DecodeImage(data []byte) (*Decoded, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyImage
	}

	raw := data
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("data:")) {
		s := strings.TrimSpace(string(data))
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURL)
		}
		decoded, err := base64.StdEncoding.DecodeString(s[comma+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		raw = decoded
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrUnsupportedImage)
	}

	return &Decoded{Image: img, Bytes: raw, MIMEType: "image/" + format}, nil
}
