package interpolation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"seismicslicer/internal/models"
)

// dippingPlanes returns a volume of planar events with slope 1 along both
// lateral axes
func dippingPlanes(shape models.Shape) *models.Volume {
	v := models.Zeros(shape)
	for i1 := 0; i1 < shape.N1; i1++ {
		for i2 := 0; i2 < shape.N2; i2++ {
			for t := 0; t < shape.N3; t++ {
				v.Set(i1, i2, t, math.Sin(0.5*float64(t-i1-i2)))
			}
		}
	}
	return v
}

// removeSamples blanks a fraction of the samples away from the first and
// last time sample and returns the matching mask. Operator rows only exist
// for t in [1, N3-1), and with slope 1 the order-1 filter weights some end
// samples by zero (for example the last sample of trace (0,0)), so a missing
// end sample can have no constraint at all and would stay at its start value.
func removeSamples(v *models.Volume, fraction float64, seed int64) (*models.Volume, *models.Mask) {
	rng := rand.New(rand.NewSource(seed))
	out := v.Clone()
	known := make([]bool, v.Len())
	for i := range known {
		known[i] = true
	}

	var candidates []int
	for i1 := 0; i1 < v.N1; i1++ {
		for i2 := 0; i2 < v.N2; i2++ {
			for t := 1; t < v.N3-1; t++ {
				candidates = append(candidates, v.Index(i1, i2, t))
			}
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	n := int(fraction * float64(v.Len()))
	for _, idx := range candidates[:n] {
		out.Data[idx] = 0
		known[idx] = false
	}
	mask, _ := models.NewMask(v.Shape, known)
	return out, mask
}

func TestInterpolateRecoversDippingPlanes(t *testing.T) {
	shape := models.Shape{N1: 5, N2: 5, N3: 10}
	truth := dippingPlanes(shape)
	damaged, mask := removeSamples(truth, 0.2, 1)

	params := DefaultParams()
	params.Iterations = 50
	params.Tolerance = 1e-12

	res, err := Interpolate(damaged, mask, models.ConstantDips(shape, 1, 1), params)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}

	maxErr := 0.0
	for i := range truth.Data {
		if mask.Known[i] {
			if res.Volume.Data[i] != damaged.Data[i] {
				t.Fatalf("known sample %d changed: %g -> %g", i, damaged.Data[i], res.Volume.Data[i])
			}
			continue
		}
		maxErr = math.Max(maxErr, math.Abs(res.Volume.Data[i]-truth.Data[i]))
	}
	if maxErr > 1e-6 {
		t.Errorf("maximum reconstruction error %g, want below 1e-6", maxErr)
	}
	if res.Iterations < 1 || res.Iterations > 50 {
		t.Errorf("Iterations = %d, want 1..50", res.Iterations)
	}
	if len(res.ResidualNorms) != res.Iterations+1 {
		t.Errorf("residual history has %d entries for %d iterations", len(res.ResidualNorms), res.Iterations)
	}
	for k := 1; k < len(res.ResidualNorms); k++ {
		prev, cur := res.ResidualNorms[k-1], res.ResidualNorms[k]
		if cur > prev*(1+1e-10)+1e-12 {
			t.Errorf("residual increased at iteration %d: %g -> %g", k, prev, cur)
		}
	}
}

func TestInterpolateDoesNotModifyInput(t *testing.T) {
	shape := models.Shape{N1: 4, N2: 3, N3: 8}
	truth := dippingPlanes(shape)
	damaged, mask := removeSamples(truth, 0.25, 3)
	before := damaged.Clone()

	if _, err := Interpolate(damaged, mask, models.ConstantDips(shape, 1, 1), DefaultParams()); err != nil {
		t.Fatal(err)
	}
	for i := range before.Data {
		if damaged.Data[i] != before.Data[i] {
			t.Fatalf("input sample %d modified", i)
		}
	}
}

func TestInterpolateFullMaskIsIdentity(t *testing.T) {
	shape := models.Shape{N1: 3, N2: 3, N3: 6}
	vol := models.Zeros(shape)
	rng := rand.New(rand.NewSource(9))
	for i := range vol.Data {
		vol.Data[i] = 1 + rng.Float64()
	}

	// Nothing is zero, so the inferred mask keeps every sample
	res, err := Interpolate(vol, nil, models.ConstantDips(shape, 0.3, -0.2), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", res.Iterations)
	}
	for i := range vol.Data {
		if res.Volume.Data[i] != vol.Data[i] {
			t.Fatalf("sample %d changed", i)
		}
	}
}

func TestInterpolateInfersMask(t *testing.T) {
	shape := models.Shape{N1: 5, N2: 5, N3: 10}
	truth := dippingPlanes(shape)
	damaged, mask := removeSamples(truth, 0.1, 7)

	params := DefaultParams()
	params.Tolerance = 1e-12
	explicit, err := Interpolate(damaged, mask, models.ConstantDips(shape, 1, 1), params)
	if err != nil {
		t.Fatal(err)
	}

	// The inferred mask also frees the true zero crossings at t = i1+i2,
	// which the destruction constraint recovers as zero
	inferred, err := Interpolate(damaged, nil, models.ConstantDips(shape, 1, 1), params)
	if err != nil {
		t.Fatal(err)
	}
	for i := range truth.Data {
		if math.Abs(inferred.Volume.Data[i]-explicit.Volume.Data[i]) > 1e-6 {
			t.Fatalf("sample %d: inferred %g, explicit %g", i, inferred.Volume.Data[i], explicit.Volume.Data[i])
		}
	}
}

func TestInterpolateConfigErrors(t *testing.T) {
	shape := models.Shape{N1: 3, N2: 3, N3: 6}
	vol := dippingPlanes(shape)
	dips := models.ConstantDips(shape, 1, 1)

	even := DefaultParams()
	even.Order = 2

	noIter := DefaultParams()
	noIter.Iterations = 0

	tests := []struct {
		name   string
		vol    *models.Volume
		dips   *models.DipField
		params Params
	}{
		{"even order", vol, dips, even},
		{"no iterations", vol, dips, noIter},
		{"shape mismatch", vol, models.ConstantDips(models.Shape{N1: 3, N2: 3, N3: 5}, 1, 1), DefaultParams()},
		{"missing dips", vol, nil, DefaultParams()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Interpolate(tt.vol, nil, tt.dips, tt.params)
			if !errors.Is(err, models.ErrInvalidConfig) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}
