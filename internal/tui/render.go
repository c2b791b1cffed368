package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/simviz/internal/rgbfile"
)

// upperHalfBlock draws the top pixel in the foreground and the bottom pixel
// in the background, giving two pixel rows per terminal row.
const upperHalfBlock = "▀"

// RenderFrame draws a width x height RGB frame into at most cols x rows
// terminal cells using half blocks. The frame is scaled down by nearest
// sampling, never up, and flipped so payload row 0 is the bottom line.
func RenderFrame(frame []byte, width, height, cols, rows int) string {
	if width <= 0 || height <= 0 || cols <= 0 || rows <= 0 {
		return ""
	}
	if len(frame) < width*height*rgbfile.BytesPerPixel {
		return ""
	}

	outW, outH := fit(width, height, cols, rows*2)

	var sb strings.Builder
	for y := 0; y < outH; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < outW; x++ {
			srcX := x * width / outW
			top := sample(frame, width, height, srcX, y*height/outH)

			style := lipgloss.NewStyle().Foreground(top)
			if y+1 < outH {
				style = style.Background(sample(frame, width, height, srcX, (y+1)*height/outH))
			}
			sb.WriteString(style.Render(upperHalfBlock))
		}
	}
	return sb.String()
}

// fit scales width x height down into maxW x maxH keeping the aspect ratio.
func fit(width, height, maxW, maxH int) (int, int) {
	if width <= maxW && height <= maxH {
		return width, height
	}
	scale := float64(maxW) / float64(width)
	if s := float64(maxH) / float64(height); s < scale {
		scale = s
	}
	w := int(float64(width) * scale)
	h := int(float64(height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// sample returns the color at display row y, counted from the top.
func sample(frame []byte, width, height, x, y int) lipgloss.Color {
	r, g, b := rgbfile.PixelAt(frame, width, x, height-1-y)
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, b))
}
