package tokens

import (
	"encoding/base64"
	"testing"

	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	raw := encodePNG(t, twoTone())

	t.Run("raw bytes", func(t *testing.T) {
		t.Parallel()

		d, err := DecodeImage(raw)
		require.NoError(t, err)
		assert.Equal(t, "image/png", d.MIMEType)
		assert.Equal(t, 100, d.Image.Bounds().Dx())
	})

	t.Run("data URL hashes like raw bytes", func(t *testing.T) {
		t.Parallel()

		url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
		d, err := DecodeImage([]byte(url))
		require.NoError(t, err)
		assert.Equal(t, raw, d.Bytes)
		assert.Equal(t, cache.ContentHash(raw), cache.ContentHash(d.Bytes))
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeImage(nil)
		assert.ErrorIs(t, err, ErrEmptyImage)

		_, err = DecodeImage([]byte("data:image/png;base64"))
		assert.ErrorIs(t, err, ErrInvalidDataURL)

		_, err = DecodeImage([]byte("data:image/png;base64,@@@"))
		assert.ErrorIs(t, err, ErrInvalidDataURL)

		_, err = DecodeImage([]byte("definitely not an image"))
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})
}
