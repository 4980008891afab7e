package pwd

import (
	"fmt"
	"math"

	"seismicslicer/internal/models"
	"seismicslicer/internal/parallel"
)

// Axis selects the lateral direction a destruction operator compares traces along
type Axis int

const (
	// AxisInline compares trace (i1, i2) with (i1+1, i2) using the inline dips
	AxisInline Axis = iota
	// AxisCrossline compares trace (i1, i2) with (i1, i2+1) using the crossline dips
	AxisCrossline
)

func (a Axis) String() string {
	switch a {
	case AxisInline:
		return "inline"
	case AxisCrossline:
		return "crossline"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Params configures a plane-wave destruction operator
type Params struct {
	// Order sets the stencil half-length; the filter has 2*Order+1 taps.
	// Must be odd and positive.
	Order int

	// Jump is the decimation step between stencil taps (1 = no decimation)
	Jump int

	// Drift is a constant slope offset in whole samples. The compared trace
	// is shifted by Drift and the filter is built from slope-Drift.
	Drift int

	// AutoDrift removes the rounded local slope at every sample instead of
	// the constant Drift, keeping the filter slope within [-0.5, 0.5]
	AutoDrift bool

	// Workers bounds the goroutines used per application (0 = all cores)
	Workers int
}

// DefaultParams returns a first-order, undecimated operator
func DefaultParams() Params {
	return Params{Order: 1, Jump: 1}
}

// Validate rejects parameters the stencil cannot be built from
func (p Params) Validate() error {
	if p.Order <= 0 || p.Order%2 == 0 {
		return &models.ConfigError{Field: "order", Reason: fmt.Sprintf("must be an odd positive integer, got %d", p.Order)}
	}
	if p.Jump <= 0 {
		return &models.ConfigError{Field: "jump", Reason: fmt.Sprintf("must be positive, got %d", p.Jump)}
	}
	if p.Workers < 0 {
		return &models.ConfigError{Field: "workers", Reason: fmt.Sprintf("must not be negative, got %d", p.Workers)}
	}
	return nil
}

// AllPass is the plane-wave destruction operator along one lateral axis.
// It maps a model of Shape.Len() samples to the same number of residuals.
// Rows whose stencil would leave the trace, or that have no neighbouring
// trace along the axis, are identically zero.
type AllPass struct {
	shape  models.Shape
	axis   Axis
	params Params

	taps   int
	stride int // flat distance to the neighbouring trace

	// per-row stencil, precomputed from the dips
	active []bool
	shift  []int
	coef   []float64
}

// New builds the operator for one axis from the dip field
func New(dips *models.DipField, axis Axis, params Params) (*AllPass, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dips == nil {
		return nil, &models.ConfigError{Field: "dips", Reason: "missing"}
	}
	if err := dips.Shape.Validate(); err != nil {
		return nil, err
	}

	var slopes []float64
	var stride int
	switch axis {
	case AxisInline:
		slopes = dips.Inline
		stride = dips.N2 * dips.N3
	case AxisCrossline:
		slopes = dips.Crossline
		stride = dips.N3
	default:
		return nil, &models.ConfigError{Field: "axis", Reason: axis.String()}
	}
	if len(slopes) != dips.Len() {
		return nil, &models.ConfigError{Field: "dips", Reason: fmt.Sprintf("%s slopes have %d values for shape %s", axis, len(slopes), dips.Shape)}
	}

	op := &AllPass{
		shape:  dips.Shape,
		axis:   axis,
		params: params,
		taps:   2*params.Order + 1,
		stride: stride,
		active: make([]bool, dips.Len()),
		shift:  make([]int, dips.Len()),
		coef:   make([]float64, dips.Len()*(2*params.Order+1)),
	}

	b := weights(params.Order)
	reach := params.Order * params.Jump
	n3 := dips.N3

	for i1 := 0; i1 < dips.N1; i1++ {
		for i2 := 0; i2 < dips.N2; i2++ {
			if !op.hasNext(i1, i2) {
				continue
			}
			base := dips.TraceOffset(i1, i2)
			for t := reach; t < n3-reach; t++ {
				i := base + t
				p := slopes[i]
				if math.IsNaN(p) || math.IsInf(p, 0) {
					return nil, &models.ConfigError{Field: "dips", Reason: fmt.Sprintf("non-finite %s slope at sample %d", axis, i)}
				}

				id := params.Drift
				if params.AutoDrift {
					id = int(math.Round(p))
				}
				if t-reach-id < 0 || t+reach-id >= n3 {
					continue
				}

				op.active[i] = true
				op.shift[i] = id
				fill(op.coef[i*op.taps:(i+1)*op.taps], b, p-float64(id))
			}
		}
	}

	return op, nil
}

// hasNext reports whether trace (i1, i2) has a neighbour along the axis
func (op *AllPass) hasNext(i1, i2 int) bool {
	if op.axis == AxisInline {
		return i1 < op.shape.N1-1
	}
	return i2 < op.shape.N2-1
}

// Axis returns the lateral axis of the operator
func (op *AllPass) Axis() Axis { return op.axis }

// Dims returns (rows, cols); the operator is square
func (op *AllPass) Dims() (int, int) {
	return op.shape.Len(), op.shape.Len()
}

// outer returns the size of the axis that can be processed in parallel
// without two goroutines touching the same trace pair
func (op *AllPass) outer() int {
	if op.axis == AxisInline {
		return op.shape.N2
	}
	return op.shape.N1
}

// traces calls fn for every trace owned by outer index o, in a fixed order
func (op *AllPass) traces(o int, fn func(base int)) {
	if op.axis == AxisInline {
		for i1 := 0; i1 < op.shape.N1; i1++ {
			fn(op.shape.TraceOffset(i1, o))
		}
		return
	}
	for i2 := 0; i2 < op.shape.N2; i2++ {
		fn(op.shape.TraceOffset(o, i2))
	}
}

// Forward computes data = L*model (or data += L*model when add is set)
func (op *AllPass) Forward(data, model []float64, add bool) {
	op.checkLen(data, model)
	nw, nj, n3 := op.params.Order, op.params.Jump, op.shape.N3

	parallel.For(op.outer(), op.params.Workers, func(lo, hi int) {
		for o := lo; o < hi; o++ {
			op.traces(o, func(base int) {
				for t := 0; t < n3; t++ {
					i := base + t
					if !add {
						data[i] = 0
					}
					if !op.active[i] {
						continue
					}
					a := op.coef[i*op.taps : (i+1)*op.taps]
					id := op.shift[i]
					sum := 0.0
					for iw, ak := range a {
						is := (iw - nw) * nj
						sum += (model[i+is+op.stride] - model[i-is-id]) * ak
					}
					data[i] += sum
				}
			})
		}
	})
}

// Adjoint computes model = L'*data (or model += L'*data when add is set)
func (op *AllPass) Adjoint(model, data []float64, add bool) {
	op.checkLen(data, model)
	nw, nj, n3 := op.params.Order, op.params.Jump, op.shape.N3

	if !add {
		for i := range model {
			model[i] = 0
		}
	}

	parallel.For(op.outer(), op.params.Workers, func(lo, hi int) {
		for o := lo; o < hi; o++ {
			op.traces(o, func(base int) {
				for t := 0; t < n3; t++ {
					i := base + t
					if !op.active[i] {
						continue
					}
					a := op.coef[i*op.taps : (i+1)*op.taps]
					id := op.shift[i]
					y := data[i]
					for iw, ak := range a {
						is := (iw - nw) * nj
						model[i+is+op.stride] += y * ak
						model[i-is-id] -= y * ak
					}
				}
			})
		}
	})
}

func (op *AllPass) checkLen(data, model []float64) {
	n := op.shape.Len()
	if len(data) != n || len(model) != n {
		panic(fmt.Sprintf("pwd: %s operator expects %d samples, got data=%d model=%d",
			op.axis, n, len(data), len(model)))
	}
}
