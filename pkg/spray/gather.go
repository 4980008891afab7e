package spray

import (
	"errors"
)

var errNonFinite = errors.New("non-finite trajectory time")

// Gather is the ensemble of a single trace location: for every sample t,
// Size values gathered along the dip, one per lateral offset.
// Reusing one Gather across calls keeps memory at O(Size*N3).
type Gather struct {
	// I1, I2 is the trace location the gather was built for
	I1, I2 int

	// N3 is the number of samples, Size the number of offsets
	N3, Size int

	// Center is the flat index of offset (0, 0)
	Center int

	// Values[t*Size+k] is offset k at sample t; Valid flags the entries
	// whose trajectory stayed inside the volume
	Values []float64
	Valid  []bool
}

// NewGather allocates a gather for traces of n3 samples
func NewGather(n3 int, p Params) *Gather {
	size := p.Size()
	return &Gather{
		N3:     n3,
		Size:   size,
		Center: p.Center(),
		Values: make([]float64, n3*size),
		Valid:  make([]bool, n3*size),
	}
}

func (g *Gather) reset(i1, i2, n3 int, p Params) {
	size := p.Size()
	if cap(g.Values) < n3*size {
		g.Values = make([]float64, n3*size)
		g.Valid = make([]bool, n3*size)
	}
	g.Values = g.Values[:n3*size]
	g.Valid = g.Valid[:n3*size]
	for i := range g.Values {
		g.Values[i] = 0
		g.Valid[i] = false
	}
	g.I1, g.I2 = i1, i2
	g.N3, g.Size, g.Center = n3, size, p.Center()
}

// Row returns the entries of sample t
func (g *Gather) Row(t int) ([]float64, []bool) {
	return g.Values[t*g.Size : (t+1)*g.Size], g.Valid[t*g.Size : (t+1)*g.Size]
}

// CountValid returns the number of valid entries of sample t
func (g *Gather) CountValid(t int) int {
	_, valid := g.Row(t)
	n := 0
	for _, ok := range valid {
		if ok {
			n++
		}
	}
	return n
}
