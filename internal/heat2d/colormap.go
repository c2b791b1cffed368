package heat2d

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

type colorStop struct {
	color colorful.Color
	pos   float64
}

// heatStops runs from cold blue through cyan and yellow to hot red.
var heatStops = []colorStop{
	{colorful.Color{R: 0.0, G: 0.0, B: 0.5}, 0.0},
	{colorful.Color{R: 0.0, G: 0.0, B: 1.0}, 0.15},
	{colorful.Color{R: 0.0, G: 1.0, B: 1.0}, 0.4},
	{colorful.Color{R: 1.0, G: 1.0, B: 0.0}, 0.7},
	{colorful.Color{R: 1.0, G: 0.0, B: 0.0}, 1.0},
}

const colormapSize = 256

// Colormap maps temperatures in [0, Max] to RGB triplets through a fixed
// lookup table blended in CIE L*a*b* space.
type Colormap struct {
	max   float64
	table [colormapSize][3]uint8
}

// NewColormap builds a colormap whose hottest color is reached at max.
func NewColormap(max float64) *Colormap {
	if max <= 0 {
		max = 1
	}
	cm := &Colormap{max: max}
	for i := range cm.table {
		c := gradientAt(float64(i) / (colormapSize - 1))
		r, g, b := c.Clamped().RGB255()
		cm.table[i] = [3]uint8{r, g, b}
	}
	return cm
}

func gradientAt(t float64) colorful.Color {
	for i := 0; i < len(heatStops)-1; i++ {
		lo, hi := heatStops[i], heatStops[i+1]
		if t >= lo.pos && t <= hi.pos {
			return lo.color.BlendLab(hi.color, (t-lo.pos)/(hi.pos-lo.pos))
		}
	}
	return heatStops[len(heatStops)-1].color
}

// Max returns the temperature mapped to the hottest color.
func (cm *Colormap) Max() float64 {
	return cm.max
}

// RGB returns the color for temperature v, clamping out of range values.
func (cm *Colormap) RGB(v float64) (r, g, b uint8) {
	idx := int(v / cm.max * (colormapSize - 1))
	if idx < 0 {
		idx = 0
	} else if idx >= colormapSize {
		idx = colormapSize - 1
	}
	c := cm.table[idx]
	return c[0], c[1], c[2]
}
