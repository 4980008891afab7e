// Package spray gathers, for every trace location of a volume, the
// amplitudes found by following the local dip field outward to the
// neighbouring traces. The result is a structure-aligned neighbourhood in
// which events appear flat, ready for an order-statistic filter.
package spray

import (
	"fmt"
	"math"

	"seismicslicer/internal/models"
	"seismicslicer/internal/parallel"
)

// Params configures the spray
type Params struct {
	// Radius1 and Radius2 bound the lateral offsets along the inline and
	// crossline axes
	Radius1 int
	Radius2 int

	// Order is the number of sub-steps used to integrate the dip over one
	// lateral step. Must be odd and positive.
	Order int

	// Eps damps changes of slope along a trajectory:
	// s = (s_local + Eps*s_previous) / (1 + Eps)
	Eps float64
}

// DefaultParams mirrors the usual structure-oriented median settings
func DefaultParams() Params {
	return Params{Radius1: 2, Radius2: 2, Order: 1, Eps: 0.01}
}

// Validate rejects radii, orders and damping the trace cannot use
func (p Params) Validate() error {
	if p.Radius1 < 0 || p.Radius2 < 0 {
		return &models.ConfigError{Field: "radius", Reason: fmt.Sprintf("must not be negative, got (%d,%d)", p.Radius1, p.Radius2)}
	}
	if p.Order <= 0 || p.Order%2 == 0 {
		return &models.ConfigError{Field: "order", Reason: fmt.Sprintf("must be an odd positive integer, got %d", p.Order)}
	}
	if p.Eps < 0 || math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) {
		return &models.ConfigError{Field: "eps", Reason: fmt.Sprintf("must be finite and non-negative, got %g", p.Eps)}
	}
	return nil
}

// Size returns the number of offsets, (2*Radius1+1)*(2*Radius2+1)
func (p Params) Size() int {
	return (2*p.Radius1 + 1) * (2*p.Radius2 + 1)
}

// Center returns the flat index of offset (0, 0), which is Size()/2
func (p Params) Center() int {
	return p.Size() / 2
}

// Flat returns the flat index of offset (a, b)
func (p Params) Flat(a, b int) int {
	return (a+p.Radius1)*(2*p.Radius2+1) + (b + p.Radius2)
}

// Offset is the inverse of Flat
func (p Params) Offset(k int) (a, b int) {
	w := 2*p.Radius2 + 1
	return k/w - p.Radius1, k%w - p.Radius2
}

// Sprayer traces trajectories through one volume. It never modifies the
// volume or the dips and is safe for concurrent Gather calls.
type Sprayer struct {
	vol    *models.Volume
	dips   *models.DipField
	params Params
}

// New validates the inputs and returns a sprayer
func New(vol *models.Volume, dips *models.DipField, params Params) (*Sprayer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := models.CheckShapes(vol, dips, nil); err != nil {
		return nil, err
	}
	for i := range dips.Inline {
		if !finite(dips.Inline[i]) || !finite(dips.Crossline[i]) {
			return nil, &models.ConfigError{Field: "dips", Reason: fmt.Sprintf("non-finite slope at sample %d", i)}
		}
	}
	return &Sprayer{vol: vol, dips: dips, params: params}, nil
}

// Params returns the spray configuration
func (s *Sprayer) Params() Params { return s.params }

// Shape returns the shape of the sprayed volume
func (s *Sprayer) Shape() models.Shape { return s.vol.Shape }

// Gather fills g with the ensemble of trace location (i1, i2).
// Entries whose trajectory leaves the volume are marked invalid and hold
// zero; offset (0, 0) is always valid and equals the input sample.
func (s *Sprayer) Gather(i1, i2 int, g *Gather) error {
	shape := s.vol.Shape
	if i1 < 0 || i1 >= shape.N1 || i2 < 0 || i2 >= shape.N2 {
		return &models.BoundaryError{I1: i1, I2: i2, Shape: shape}
	}
	g.reset(i1, i2, shape.N3, s.params)

	p := s.params
	r1, r2 := p.Radius1, p.Radius2
	n1 := 2*r1 + 1

	// times reached along the inline leg, indexed by a+r1
	tau1 := make([]float64, n1)
	ok1 := make([]bool, n1)

	for t := 0; t < shape.N3; t++ {
		tau1[r1], ok1[r1] = float64(t), true
		for _, dir := range [2]int{1, -1} {
			if err := s.leg(axisInline, i1, i2, dir, r1, float64(t), func(step int, tau float64, ok bool) {
				tau1[r1+dir*step], ok1[r1+dir*step] = tau, ok
			}); err != nil {
				return s.divergence(i1, i2, t)
			}
		}

		row, valid := g.Row(t)
		for a := -r1; a <= r1; a++ {
			j1 := i1 + a
			if !ok1[a+r1] {
				continue
			}
			start := tau1[a+r1]
			k := p.Flat(a, 0)
			row[k] = s.sample(j1, i2, start)
			valid[k] = true

			for _, dir := range [2]int{1, -1} {
				if err := s.leg(axisCrossline, j1, i2, dir, r2, start, func(step int, tau float64, ok bool) {
					k := p.Flat(a, dir*step)
					if ok {
						row[k] = s.sample(j1, i2+dir*step, tau)
						valid[k] = true
					}
				}); err != nil {
					return s.divergence(i1, i2, t)
				}
			}
		}
	}
	return nil
}

// timeTolerance absorbs rounding in the accumulated trajectory time so a
// path ending exactly on the first or last sample stays inside the volume
const timeTolerance = 1e-9

type legAxis int

const (
	axisInline legAxis = iota
	axisCrossline
)

// leg walks up to radius lateral steps from trace (i1, i2) at time tau along
// one axis in direction dir, reporting the time reached after every step.
// Once a step leaves the volume it and every further step are reported
// invalid.
func (s *Sprayer) leg(axis legAxis, i1, i2, dir, radius int, tau float64, visit func(step int, tau float64, ok bool)) error {
	shape := s.vol.Shape
	order := s.params.Order
	eps := s.params.Eps
	h := 1.0 / float64(order)
	tmax := float64(shape.N3 - 1)

	origin, limit := i1, shape.N1
	if axis == axisCrossline {
		origin, limit = i2, shape.N2
	}

	ok := true
	prev, hasPrev := 0.0, false
	for step := 1; step <= radius; step++ {
		target := origin + dir*step
		if target < 0 || target >= limit {
			ok = false
		}
		if ok {
			for sub := 0; sub < order; sub++ {
				// the dip at x is the slope between x and x+1; read it at the
				// lower end of the interval crossed
				x := float64(origin+dir*(step-1)) + float64(dir*sub)*h
				if dir < 0 {
					x = math.Max(float64(target), x-h)
				}
				slope := s.slope(axis, i1, i2, x, tau)
				if hasPrev {
					slope = (slope + eps*prev) / (1 + eps)
				}
				prev, hasPrev = slope, true
				tau += float64(dir) * slope * h
				if !finite(tau) {
					return errNonFinite
				}
				if tau < -timeTolerance || tau > tmax+timeTolerance {
					ok = false
					break
				}
				tau = math.Max(0, math.Min(tmax, tau))
			}
		}
		visit(step, tau, ok)
	}
	return nil
}

// slope returns the dip along axis at lateral position x (fractional along
// the axis, the other lateral index fixed) and time tau
func (s *Sprayer) slope(axis legAxis, i1, i2 int, x, tau float64) float64 {
	j := int(math.Floor(x))
	w := x - float64(j)

	at := func(j int) float64 {
		if axis == axisInline {
			return interp(s.dipTrace(s.dips.Inline, j, i2), tau)
		}
		return interp(s.dipTrace(s.dips.Crossline, i1, j), tau)
	}

	v := at(j)
	if w > 0 {
		v = v*(1-w) + at(j+1)*w
	}
	return v
}

func (s *Sprayer) dipTrace(values []float64, i1, i2 int) []float64 {
	off := s.dips.TraceOffset(i1, i2)
	return values[off : off+s.dips.N3]
}

// sample reads the volume at trace (i1, i2) and fractional time tau
func (s *Sprayer) sample(i1, i2 int, tau float64) float64 {
	return interp(s.vol.Trace(i1, i2), tau)
}

func (s *Sprayer) divergence(i1, i2, t int) error {
	return &models.DivergenceError{Stage: "spray", Iteration: s.vol.Index(i1, i2, t)}
}

// interp linearly interpolates a trace at tau, which must lie in
// [0, len(trace)-1]. Integer times return the stored sample unchanged.
func interp(trace []float64, tau float64) float64 {
	k := int(math.Floor(tau))
	f := tau - float64(k)
	if f == 0 {
		return trace[k]
	}
	return trace[k]*(1-f) + trace[k+1]*f
}

// Ensemble is the fully materialised spray of a volume: Size values per
// sample, laid out as ((i1*N2+i2)*N3+t)*Size + k
type Ensemble struct {
	Shape  models.Shape
	Params Params
	Values []float64
	Valid  []bool
}

// At returns entry k of sample (i1, i2, t) and whether it is valid
func (e *Ensemble) At(i1, i2, t, k int) (float64, bool) {
	i := e.Shape.Index(i1, i2, t)*e.Params.Size() + k
	return e.Values[i], e.Valid[i]
}

// Ensemble materialises the spray of every trace. Memory grows with
// Size() times the volume; prefer Gather for large radii.
func (s *Sprayer) Ensemble(workers int) (*Ensemble, error) {
	shape := s.vol.Shape
	size := s.params.Size()
	e := &Ensemble{
		Shape:  shape,
		Params: s.params,
		Values: make([]float64, shape.Len()*size),
		Valid:  make([]bool, shape.Len()*size),
	}

	errs := make([]error, shape.N1)
	parallel.For(shape.N1, workers, func(lo, hi int) {
		g := NewGather(shape.N3, s.params)
		for i1 := lo; i1 < hi; i1++ {
			for i2 := 0; i2 < shape.N2; i2++ {
				if err := s.Gather(i1, i2, g); err != nil {
					errs[i1] = err
					return
				}
				off := shape.TraceOffset(i1, i2) * size
				copy(e.Values[off:off+len(g.Values)], g.Values)
				copy(e.Valid[off:off+len(g.Valid)], g.Valid)
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
