package pwd

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"

	"seismicslicer/internal/models"
)

func randomVector(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}

func randomDips(rng *rand.Rand, shape models.Shape, scale float64) *models.DipField {
	d := models.ConstantDips(shape, 0, 0)
	for i := range d.Inline {
		d.Inline[i] = scale * (2*rng.Float64() - 1)
		d.Crossline[i] = scale * (2*rng.Float64() - 1)
	}
	return d
}

func TestCoefficients(t *testing.T) {
	// Order 1 taps in closed form
	for _, p := range []float64{-1, -0.4, 0, 0.3, 1, 1.7} {
		a := Coefficients(p, 1)
		want := []float64{
			(1 - p) * (2 - p) / 12,
			(2 - p) * (2 + p) / 6,
			(1 + p) * (2 + p) / 12,
		}
		for k := range want {
			if math.Abs(a[k]-want[k]) > 1e-14 {
				t.Errorf("p=%g: tap %d = %g, want %g", p, k, a[k], want[k])
			}
		}
	}

	for _, order := range []int{1, 3, 5} {
		for _, p := range []float64{-2.5, 0, 0.3, 1} {
			a := Coefficients(p, order)
			if len(a) != 2*order+1 {
				t.Fatalf("order %d: got %d taps", order, len(a))
			}
			if sum := floats.Sum(a); math.Abs(sum-1) > 1e-12 {
				t.Errorf("order %d, p=%g: taps sum to %g", order, p, sum)
			}
		}
	}
}

func TestInvalidOrder(t *testing.T) {
	shape := models.Shape{N1: 3, N2: 3, N3: 8}
	dips := models.ConstantDips(shape, 0, 0)

	for _, order := range []int{0, -1, 2, 4} {
		_, err := New(dips, AxisInline, Params{Order: order, Jump: 1})
		if !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("order %d: expected configuration error, got %v", order, err)
		}
	}

	_, err := New(dips, AxisInline, Params{Order: 1, Jump: 0})
	if !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("jump 0: expected configuration error, got %v", err)
	}

	dips.Crossline[5] = math.NaN()
	_, err = New(dips, AxisCrossline, DefaultParams())
	if !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("NaN slope: expected configuration error, got %v", err)
	}
}

// TestDotProduct checks <L x, y> == <x, L' y> for both axes and the stack
func TestDotProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shape := models.Shape{N1: 4, N2: 5, N3: 16}

	configs := []struct {
		name   string
		params Params
	}{
		{"order1", Params{Order: 1, Jump: 1}},
		{"order3", Params{Order: 3, Jump: 1}},
		{"jump2", Params{Order: 1, Jump: 2}},
		{"drift", Params{Order: 1, Jump: 1, Drift: 1}},
		{"autodrift", Params{Order: 1, Jump: 1, AutoDrift: true}},
		{"serial", Params{Order: 1, Jump: 1, Workers: 1}},
	}

	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			dips := randomDips(rng, shape, 2)
			for _, axis := range []Axis{AxisInline, AxisCrossline} {
				op, err := New(dips, axis, cfg.params)
				if err != nil {
					t.Fatal(err)
				}
				x := randomVector(rng, shape.Len())
				y := randomVector(rng, shape.Len())
				lx := make([]float64, shape.Len())
				lty := make([]float64, shape.Len())
				op.Forward(lx, x, false)
				op.Adjoint(lty, y, false)

				lhs := floats.Dot(lx, y)
				rhs := floats.Dot(x, lty)
				if math.Abs(lhs-rhs) > 1e-10*math.Max(1, math.Abs(lhs)) {
					t.Errorf("%s: <Lx,y>=%g, <x,L'y>=%g", axis, lhs, rhs)
				}
			}

			stack, err := NewStack(dips, cfg.params, cfg.params.Jump, cfg.params.Jump)
			if err != nil {
				t.Fatal(err)
			}
			rows, cols := stack.Dims()
			if rows != 2*cols {
				t.Fatalf("stack dims = (%d,%d)", rows, cols)
			}
			x := randomVector(rng, cols)
			y := randomVector(rng, rows)
			lx := make([]float64, rows)
			lty := make([]float64, cols)
			stack.Forward(lx, x, false)
			stack.Adjoint(lty, y, false)
			lhs := floats.Dot(lx, y)
			rhs := floats.Dot(x, lty)
			if math.Abs(lhs-rhs) > 1e-10*math.Max(1, math.Abs(lhs)) {
				t.Errorf("stack: <Lx,y>=%g, <x,L'y>=%g", lhs, rhs)
			}
		})
	}
}

// TestPlaneDestruction checks that a plane with the supplied integer slope
// is annihilated exactly, and that a mismatched slope is not
func TestPlaneDestruction(t *testing.T) {
	shape := models.Shape{N1: 5, N2: 5, N3: 20}
	plane := make([]float64, shape.Len())
	for i1 := 0; i1 < shape.N1; i1++ {
		for i2 := 0; i2 < shape.N2; i2++ {
			for t3 := 0; t3 < shape.N3; t3++ {
				u := float64(t3 - i1 - i2)
				plane[shape.Index(i1, i2, t3)] = math.Sin(0.4*u) + 0.1*u
			}
		}
	}

	stack, err := NewStack(models.ConstantDips(shape, 1, 1), DefaultParams(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	res := make([]float64, 2*shape.Len())
	stack.Forward(res, plane, false)
	if norm := floats.Norm(res, 2); norm > 1e-12 {
		t.Errorf("residual of a matching plane = %g, want 0", norm)
	}

	flat, err := NewStack(models.ConstantDips(shape, 0, 0), DefaultParams(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	flat.Forward(res, plane, false)
	if norm := floats.Norm(res, 2); norm < 1e-3 {
		t.Errorf("residual with the wrong slope = %g, expected a clear misfit", norm)
	}
}

func TestDriftMatchesShiftedSlope(t *testing.T) {
	// A slope-2 plane is outside what an order-1 filter resolves exactly,
	// but with the integer part removed as drift it is destroyed again.
	shape := models.Shape{N1: 4, N2: 1, N3: 24}
	plane := make([]float64, shape.Len())
	for i1 := 0; i1 < shape.N1; i1++ {
		for t3 := 0; t3 < shape.N3; t3++ {
			u := float64(t3 - 2*i1)
			plane[shape.Index(i1, 0, t3)] = math.Cos(0.3 * u)
		}
	}
	dips := models.ConstantDips(shape, 2, 0)

	for _, params := range []Params{
		{Order: 1, Jump: 1, Drift: 2},
		{Order: 1, Jump: 1, AutoDrift: true},
	} {
		op, err := New(dips, AxisInline, params)
		if err != nil {
			t.Fatal(err)
		}
		res := make([]float64, shape.Len())
		op.Forward(res, plane, false)
		if norm := floats.Norm(res, 2); norm > 1e-12 {
			t.Errorf("%+v: residual = %g, want 0", params, norm)
		}
	}
}

func TestForwardAddAccumulates(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	shape := models.Shape{N1: 3, N2: 3, N3: 10}
	op, err := New(randomDips(rng, shape, 1), AxisCrossline, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	x := randomVector(rng, shape.Len())
	once := make([]float64, shape.Len())
	op.Forward(once, x, false)

	twice := make([]float64, shape.Len())
	copy(twice, once)
	op.Forward(twice, x, true)

	for i := range once {
		if math.Abs(twice[i]-2*once[i]) > 1e-12 {
			t.Fatalf("row %d: add=true gave %g, want %g", i, twice[i], 2*once[i])
		}
	}
}
