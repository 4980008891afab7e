// Package pwd implements plane-wave destruction operators: linear stencils
// whose output vanishes when the data are locally consistent with a
// supplied reflector slope.
package pwd

// weights returns the slope-independent normalisation of the maximally flat
// all-pass filter of the given order (2*order+1 taps)
func weights(order int) []float64 {
	n := 2 * order
	b := make([]float64, n+1)
	for k := 0; k <= n; k++ {
		bk := 1.0
		for j := 0; j < n; j++ {
			if j < n-k {
				bk *= float64(k+j+1) / float64(2*(2*j+1)*(j+1))
			} else {
				bk *= 1.0 / float64(2*(2*j+1))
			}
		}
		b[k] = bk
	}
	return b
}

// fill writes the taps for slope p into a using precomputed weights b
func fill(a, b []float64, p float64) {
	n := len(b) - 1
	for k := 0; k <= n; k++ {
		ak := b[k]
		for j := 0; j < n; j++ {
			if j < n-k {
				ak *= float64(n-j) - p
			} else {
				ak *= p + float64(j+1)
			}
		}
		a[k] = ak
	}
}

// Coefficients returns the 2*order+1 taps of the plane-wave filter for
// slope p. The taps always sum to one; for integer |p| <= order the filter
// is an exact shift of p samples.
func Coefficients(p float64, order int) []float64 {
	b := weights(order)
	a := make([]float64, len(b))
	fill(a, b, p)
	return a
}
