// Package heat2d simulates heat diffusion across a square metal plate and
// records it as a simviz container. A source along the middle third of the
// bottom edge holds a fixed temperature for the first heat_time steps; the
// interior follows a forward Euler update and the edges mirror their inner
// neighbours.
package heat2d

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/zsiec/simviz/internal/rgbfile"
)

const (
	// SourceTemperature is the temperature held at the heat source.
	SourceTemperature = 19.0

	// DefaultDiffusion is a*dt/dd^2 with a=1, dt=1 and dd=2.
	DefaultDiffusion = 0.25
)

// Plate is a size x size temperature grid with two phases. Cell (x, y) is
// stored at y*size+x; row 0 is the heated bottom edge.
type Plate struct {
	size     int
	r        float64
	heatTime int
	time     int
	phase    int
	cells    [2][]float64
}

// NewPlate returns a cold plate.
func NewPlate(size, heatTime int) (*Plate, error) {
	if size < 3 {
		return nil, fmt.Errorf("plate size must be at least 3, got %d", size)
	}
	if heatTime < 0 {
		return nil, fmt.Errorf("heat time cannot be negative")
	}
	return &Plate{
		size:     size,
		r:        DefaultDiffusion,
		heatTime: heatTime,
		cells:    [2][]float64{make([]float64, size*size), make([]float64, size*size)},
	}, nil
}

// Size returns the number of cells per side.
func (p *Plate) Size() int {
	return p.size
}

// Time returns the number of completed steps.
func (p *Plate) Time() int {
	return p.time
}

// At returns the temperature of cell (x, y) in the current phase.
func (p *Plate) At(x, y int) float64 {
	return p.cells[p.phase][y*p.size+x]
}

// Prepare brings the current phase up to date for time: edges copy their
// inner neighbours and the source is applied while heating. Frames and text
// dumps are taken after Prepare and before Step.
func (p *Plate) Prepare() {
	z := p.cells[p.phase]
	n := p.size

	for y := 0; y < n; y++ {
		z[y*n] = z[y*n+1]
		z[y*n+n-1] = z[y*n+n-2]
	}
	for x := 0; x < n; x++ {
		z[x] = z[n+x]
		z[(n-1)*n+x] = z[(n-2)*n+x]
	}

	if p.time < p.heatTime {
		for x := n / 3; x < n/3*2; x++ {
			z[x] = SourceTemperature
		}
	}
}

// Step computes the interior of the next phase and advances time.
func (p *Plate) Step() {
	src := p.cells[p.phase]
	dst := p.cells[1-p.phase]
	n := p.size

	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			i := y*n + x
			c := src[i]
			dst[i] = c +
				p.r*(src[i+1]-2*c+src[i-1]) +
				p.r*(src[i+n]-2*c+src[i-n])
		}
	}

	p.phase = 1 - p.phase
	p.time++
}

// Render writes the current phase into frame as packed RGB, one triplet per
// cell in row-major order. frame must be size*size*3 bytes.
func (p *Plate) Render(frame []byte, cm *Colormap) {
	z := p.cells[p.phase]
	for i, v := range z {
		r, g, b := cm.RGB(v)
		frame[i*rgbfile.BytesPerPixel] = r
		frame[i*rgbfile.BytesPerPixel+1] = g
		frame[i*rgbfile.BytesPerPixel+2] = b
	}
}

// WriteText dumps the current phase as a "time = N" line followed by one
// line per row of integer half-temperatures.
func (p *Plate) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "time = %d\n", p.time)
	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			if x > 0 {
				bw.WriteByte(' ')
			}
			fmt.Fprintf(bw, "%d", int(math.Floor(p.At(x, y)/2)))
		}
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	return bw.Flush()
}
