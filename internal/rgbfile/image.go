package rgbfile

import (
	"image"
)

// ToImage converts one frame into an RGBA image. With flip set, payload row 0
// lands at the bottom of the image, matching how the viewer samples frames.
// A frame shorter than width*height*3 yields nil.
func ToImage(frame []byte, width, height int, flip bool) *image.RGBA {
	if width <= 0 || height <= 0 || len(frame) < width*height*BytesPerPixel {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := width * BytesPerPixel
	for y := 0; y < height; y++ {
		srcRow := y
		if flip {
			srcRow = height - 1 - y
		}
		src := frame[srcRow*stride : (srcRow+1)*stride]
		dst := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xFF
		}
	}
	return img
}

// FromImage packs img into a width x height RGB frame, the inverse of
// ToImage with the same flip setting.
func FromImage(img image.Image, flip bool) []byte {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	frame := make([]byte, width*height*BytesPerPixel)
	for y := 0; y < height; y++ {
		dstRow := y
		if flip {
			dstRow = height - 1 - y
		}
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (dstRow*width + x) * BytesPerPixel
			frame[i+0] = uint8(r >> 8)
			frame[i+1] = uint8(g >> 8)
			frame[i+2] = uint8(bl >> 8)
		}
	}
	return frame
}

// PixelAt returns the RGB triplet at column x of payload row y.
func PixelAt(frame []byte, width, x, y int) (r, g, b uint8) {
	i := (y*width + x) * BytesPerPixel
	return frame[i], frame[i+1], frame[i+2]
}
