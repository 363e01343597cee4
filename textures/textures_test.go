package textures_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/NocaToca/Calico/textures"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

func TestCheckerboard(t *testing.T) {
	tex := textures.Checkerboard(4, 2, white, black)

	assert.Equal(t, uint32(4), tex.Width)
	assert.Equal(t, uint32(4), tex.Height)
	require.Len(t, tex.Pixels, tex.Size())

	pixel := func(x, y int) []byte {
		offset := (y*4 + x) * 4
		return tex.Pixels[offset : offset+4]
	}
	assert.Equal(t, []byte{255, 255, 255, 255}, pixel(0, 0))
	assert.Equal(t, []byte{255, 255, 255, 255}, pixel(1, 1))
	assert.Equal(t, []byte{0, 0, 0, 255}, pixel(2, 0))
	assert.Equal(t, []byte{0, 0, 0, 255}, pixel(0, 3))
	assert.Equal(t, []byte{255, 255, 255, 255}, pixel(3, 3))
}

func TestFromImageConvertsAndCrops(t *testing.T) {
	gray := image.NewGray(image.Rect(10, 10, 13, 12))
	gray.SetGray(10, 10, color.Gray{Y: 200})

	tex := textures.FromImage(gray)
	assert.Equal(t, uint32(3), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)
	require.Len(t, tex.Pixels, 3*2*4)
	assert.Equal(t, []byte{200, 200, 200, 255}, tex.Pixels[:4])
}

func TestDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	src.SetRGBA(1, 0, color.RGBA{4, 5, 6, 255})

	encoders := map[string]func(*bytes.Buffer) error{
		"png": func(buf *bytes.Buffer) error { return png.Encode(buf, src) },
		"bmp": func(buf *bytes.Buffer) error { return bmp.Encode(buf, src) },
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			tex, err := textures.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, tex.Pixels)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texture.png")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 4))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	tex, err := textures.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), tex.Width)
	assert.Equal(t, uint32(4), tex.Height)
}

func TestLoadErrors(t *testing.T) {
	_, err := textures.Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, err = textures.Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
