package rgbfile

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2x2 frame, payload row 0 red/green, row 1 blue/white.
var quad = []byte{
	255, 0, 0, 0, 255, 0,
	0, 0, 255, 255, 255, 255,
}

func TestToImageFlipped(t *testing.T) {
	img := ToImage(quad, 2, 2, true)
	require.NotNil(t, img)

	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(0, 0), "payload row 1 is the top scanline")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.RGBAAt(1, 1))
}

func TestToImageUnflipped(t *testing.T) {
	img := ToImage(quad, 2, 2, false)
	require.NotNil(t, img)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1, 1))
}

func TestToImageShortFrame(t *testing.T) {
	assert.Nil(t, ToImage(quad[:11], 2, 2, true))
	assert.Nil(t, ToImage(quad, 0, 2, true))
}

func TestFromImageInvertsToImage(t *testing.T) {
	for _, flip := range []bool{true, false} {
		assert.Equal(t, quad, FromImage(ToImage(quad, 2, 2, flip), flip))
	}
}

func TestPixelAt(t *testing.T) {
	r, g, b := PixelAt(quad, 2, 1, 1)
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{r, g, b})
	r, g, b = PixelAt(quad, 2, 0, 1)
	assert.Equal(t, [3]uint8{0, 0, 255}, [3]uint8{r, g, b})
}
