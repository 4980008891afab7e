// Package median reduces spray ensembles to one robust value per sample,
// either with a fixed-length median or with a space-varying median whose
// length follows the local dispersion of the ensemble.
package median

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"seismicslicer/internal/models"
	"seismicslicer/pkg/spray"
)

// Mode selects the window rule
type Mode int

const (
	// Fixed uses the same window length everywhere
	Fixed Mode = iota
	// Adaptive shrinks the window where the ensemble is dispersed
	Adaptive
)

func (m Mode) String() string {
	switch m {
	case Fixed:
		return "fixed"
	case Adaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "fixed" or "adaptive" to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "mf":
		return Fixed, nil
	case "adaptive", "svmf":
		return Adaptive, nil
	}
	return Fixed, &models.ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown median mode %q", s)}
}

// Params configures the filter
type Params struct {
	Mode Mode

	// Window is the (base) window length along the flattened ensemble,
	// centred on the zero offset. Zero uses every entry. Must be odd.
	Window int
}

// Validate checks the mode and window
func (p Params) Validate() error {
	if p.Mode != Fixed && p.Mode != Adaptive {
		return &models.ConfigError{Field: "mode", Reason: p.Mode.String()}
	}
	if p.Window < 0 || (p.Window > 0 && p.Window%2 == 0) {
		return &models.ConfigError{Field: "window", Reason: fmt.Sprintf("must be zero or an odd positive length, got %d", p.Window)}
	}
	return nil
}

// Median returns the median of values, averaging the two middle values
// for even lengths. values is reordered.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// Filter holds per-worker scratch space. A Filter is not safe for
// concurrent use; give each goroutine its own.
type Filter struct {
	params Params
	buf    []float64
	disp   []float64
	level  []int
}

// NewFilter validates the parameters
func NewFilter(params Params) (*Filter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Filter{params: params}, nil
}

// FilterGather filters one gather with a throwaway Filter
func FilterGather(g *spray.Gather, params Params, out []float64, windows []int) error {
	f, err := NewFilter(params)
	if err != nil {
		return err
	}
	if len(out) < g.N3 || (windows != nil && len(windows) < g.N3) {
		return &models.ConfigError{Field: "output", Reason: fmt.Sprintf("buffers shorter than %d samples", g.N3)}
	}
	f.Apply(g, out, windows)
	return nil
}

// base returns the window length for an ensemble of size entries
func (f *Filter) base(size int) int {
	if f.params.Window == 0 || f.params.Window > size {
		return size
	}
	return f.params.Window
}

// Apply filters every sample of the gather, writing the result to
// out[t]. When windows is non-nil the window length used at every sample is
// stored there.
func (f *Filter) Apply(g *spray.Gather, out []float64, windows []int) {
	if cap(f.buf) < g.Size {
		f.buf = make([]float64, 0, g.Size)
	}

	base := f.base(g.Size)
	if f.params.Mode == Fixed {
		for t := 0; t < g.N3; t++ {
			out[t] = f.windowMedian(g, t, base)
			if windows != nil {
				windows[t] = base
			}
		}
		return
	}

	levels := f.adaptiveLevels(g)
	step := 2 * ((base - 1 + 7) / 8)
	for t := 0; t < g.N3; t++ {
		w := base - levels[t]*step
		if w < 1 {
			w = 1
		}
		out[t] = f.windowMedian(g, t, w)
		if windows != nil {
			windows[t] = w
		}
	}
}

// windowMedian takes the median of the valid entries within w/2 of the
// centre offset
func (f *Filter) windowMedian(g *spray.Gather, t, w int) float64 {
	row, valid := g.Row(t)
	lo := g.Center - w/2
	hi := g.Center + w/2
	if lo < 0 {
		lo = 0
	}
	if hi > g.Size-1 {
		hi = g.Size - 1
	}

	f.buf = f.buf[:0]
	for k := lo; k <= hi; k++ {
		if valid[k] {
			f.buf = append(f.buf, row[k])
		}
	}
	if len(f.buf) == 0 {
		return row[g.Center]
	}
	return Median(f.buf)
}

// adaptiveLevels grades every sample by the inter-quartile range of its
// valid entries relative to the mean range over the gather:
// 0 for d <= ref/2, 1 for d <= ref, 2 for d <= 2*ref and 4 above.
func (f *Filter) adaptiveLevels(g *spray.Gather) []int {
	if cap(f.disp) < g.N3 {
		f.disp = make([]float64, g.N3)
		f.level = make([]int, g.N3)
	}
	disp := f.disp[:g.N3]
	level := f.level[:g.N3]

	for t := 0; t < g.N3; t++ {
		row, valid := g.Row(t)
		f.buf = f.buf[:0]
		for k, v := range row {
			if valid[k] {
				f.buf = append(f.buf, v)
			}
		}
		disp[t] = 0
		if len(f.buf) > 1 {
			sort.Float64s(f.buf)
			disp[t] = stat.Quantile(0.75, stat.LinInterp, f.buf, nil) -
				stat.Quantile(0.25, stat.LinInterp, f.buf, nil)
		}
	}

	ref := stat.Mean(disp, nil)
	for t, d := range disp {
		switch {
		case d <= ref/2:
			level[t] = 0
		case d <= ref:
			level[t] = 1
		case d <= 2*ref:
			level[t] = 2
		default:
			level[t] = 4
		}
	}
	return level
}
