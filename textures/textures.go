// Package textures decodes texture images into tightly packed RGBA pixels.
package textures

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Texture is an 8 bit per channel RGBA image with rows stored top to bottom
// without padding.
type Texture struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// Size returns the number of bytes in Pixels.
func (t *Texture) Size() int {
	return int(t.Width) * int(t.Height) * 4
}

// Load decodes the PNG, JPEG or BMP image at path.
func Load(path string) (*Texture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open texture file")
	}
	defer fh.Close()

	return Decode(fh)
}

// Decode reads a PNG, JPEG or BMP image from r.
func Decode(r io.Reader) (*Texture, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode texture image")
	}
	if img.Bounds().Empty() {
		return nil, errors.New("texture image is empty")
	}
	return FromImage(img), nil
}

// FromImage converts img to RGBA if it is not already.
func FromImage(img image.Image) *Texture {
	b := img.Bounds()

	rgbaImg, ok := img.(*image.RGBA)
	if !ok || rgbaImg.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgbaImg = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgbaImg, rgbaImg.Bounds(), img, b.Min, draw.Src)
	}

	return &Texture{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgbaImg.Pix[:4*b.Dx()*b.Dy()],
	}
}

// Checkerboard returns a size by size texture of alternating cell by cell
// squares. The top left square is light.
func Checkerboard(size, cell int, light, dark color.RGBA) *Texture {
	if cell <= 0 {
		cell = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := light
			if (x/cell+y/cell)%2 == 1 {
				c = dark
			}
			img.SetRGBA(x, y, c)
		}
	}

	return FromImage(img)
}
