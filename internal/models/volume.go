package models

import (
	"fmt"
)

// Shape describes the three axes of a seismic volume
type Shape struct {
	// N1 is the number of inlines (axis 1)
	N1 int

	// N2 is the number of crosslines (axis 2)
	N2 int

	// N3 is the number of time/depth samples per trace (axis 3)
	N3 int
}

// Len returns the total number of samples
func (s Shape) Len() int {
	return s.N1 * s.N2 * s.N3
}

// Index returns the flat index of sample (i1, i2, i3).
// Storage is row-major with the sample axis fastest, so every trace
// (i1, i2) is a contiguous run of N3 values.
func (s Shape) Index(i1, i2, i3 int) int {
	return (i1*s.N2+i2)*s.N3 + i3
}

// TraceOffset returns the flat index of the first sample of trace (i1, i2)
func (s Shape) TraceOffset(i1, i2 int) int {
	return (i1*s.N2 + i2) * s.N3
}

// Validate checks that every axis is non-empty
func (s Shape) Validate() error {
	if s.N1 < 1 || s.N2 < 1 || s.N3 < 1 {
		return &ConfigError{Field: "shape", Reason: fmt.Sprintf("all axes must be positive, got %s", s)}
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s.N1, s.N2, s.N3)
}

// Geometry carries the axis coordinates supplied by the volume loader.
// The processing kernel only uses index space; geometry travels along
// so that outputs can be written and labelled with the original survey axes.
type Geometry struct {
	// Inlines holds the survey inline number of every index along axis 1
	Inlines []int `yaml:"inlines,omitempty"`

	// Crosslines holds the survey crossline number of every index along axis 2
	Crosslines []int `yaml:"crosslines,omitempty"`

	// SampleStart is the time/depth of the first sample
	SampleStart float64 `yaml:"sampleStart"`

	// SampleRate is the time/depth increment between samples
	SampleRate float64 `yaml:"sampleRate"`
}

// Volume is a dense 3-axis array of amplitudes indexed by
// (inline, crossline, sample)
type Volume struct {
	Shape

	// Data holds Shape.Len() amplitudes, see Shape.Index for the layout
	Data []float64

	// Geometry is optional axis metadata
	Geometry *Geometry
}

// NewVolume wraps data as a volume of the given shape
func NewVolume(shape Shape, data []float64) (*Volume, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.Len() {
		return nil, &ConfigError{
			Field:  "volume",
			Reason: fmt.Sprintf("got %d samples for shape %s", len(data), shape),
		}
	}
	return &Volume{Shape: shape, Data: data}, nil
}

// Zeros allocates a zero-filled volume
func Zeros(shape Shape) *Volume {
	return &Volume{Shape: shape, Data: make([]float64, shape.Len())}
}

// Clone returns a deep copy of the volume data. Geometry is shared, it is
// never modified by processing.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &Volume{Shape: v.Shape, Data: data, Geometry: v.Geometry}
}

// At returns the sample at (i1, i2, i3)
func (v *Volume) At(i1, i2, i3 int) float64 {
	return v.Data[v.Index(i1, i2, i3)]
}

// Set stores a sample at (i1, i2, i3)
func (v *Volume) Set(i1, i2, i3 int, value float64) {
	v.Data[v.Index(i1, i2, i3)] = value
}

// Trace returns the samples of trace (i1, i2). The slice aliases Data.
func (v *Volume) Trace(i1, i2 int) []float64 {
	off := v.TraceOffset(i1, i2)
	return v.Data[off : off+v.N3]
}

// DipField holds the local reflector slopes, in samples per lateral step,
// along the inline and crossline axes
type DipField struct {
	Shape

	// Inline is the slope along axis 1
	Inline []float64

	// Crossline is the slope along axis 2
	Crossline []float64
}

// NewDipField wraps the two slope arrays
func NewDipField(shape Shape, inline, crossline []float64) (*DipField, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(inline) != shape.Len() || len(crossline) != shape.Len() {
		return nil, &ConfigError{
			Field: "dips",
			Reason: fmt.Sprintf("got %d/%d slopes for shape %s",
				len(inline), len(crossline), shape),
		}
	}
	return &DipField{Shape: shape, Inline: inline, Crossline: crossline}, nil
}

// ConstantDips builds a dip field with the same slope everywhere
func ConstantDips(shape Shape, p1, p2 float64) *DipField {
	d := &DipField{
		Shape:     shape,
		Inline:    make([]float64, shape.Len()),
		Crossline: make([]float64, shape.Len()),
	}
	for i := range d.Inline {
		d.Inline[i] = p1
		d.Crossline[i] = p2
	}
	return d
}

// Mask flags the samples that are hard data
type Mask struct {
	Shape

	// Known is true for samples that must be preserved
	Known []bool
}

// NewMask wraps a known-sample flag array
func NewMask(shape Shape, known []bool) (*Mask, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(known) != shape.Len() {
		return nil, &ConfigError{
			Field:  "mask",
			Reason: fmt.Sprintf("got %d flags for shape %s", len(known), shape),
		}
	}
	return &Mask{Shape: shape, Known: known}, nil
}

// InferMask marks every non-zero sample of the volume as known
func InferMask(v *Volume) *Mask {
	known := make([]bool, len(v.Data))
	for i, x := range v.Data {
		known[i] = x != 0
	}
	return &Mask{Shape: v.Shape, Known: known}
}

// CountKnown returns the number of known samples
func (m *Mask) CountKnown() int {
	n := 0
	for _, k := range m.Known {
		if k {
			n++
		}
	}
	return n
}

// WindowMap records the median window length chosen for every sample by the
// space-varying median filter
type WindowMap struct {
	Shape

	Data []int
}

// CheckShapes verifies that the volume, the dip field and the optional mask
// describe the same grid
func CheckShapes(v *Volume, dips *DipField, mask *Mask) error {
	if v == nil {
		return &ConfigError{Field: "volume", Reason: "missing"}
	}
	if err := v.Shape.Validate(); err != nil {
		return err
	}
	if len(v.Data) != v.Len() {
		return &ConfigError{Field: "volume", Reason: fmt.Sprintf("got %d samples for shape %s", len(v.Data), v.Shape)}
	}
	if dips == nil {
		return &ConfigError{Field: "dips", Reason: "missing"}
	}
	if dips.Shape != v.Shape {
		return &ConfigError{Field: "dips", Reason: fmt.Sprintf("shape %s does not match volume %s", dips.Shape, v.Shape)}
	}
	if len(dips.Inline) != v.Len() || len(dips.Crossline) != v.Len() {
		return &ConfigError{Field: "dips", Reason: "slope arrays do not match the volume size"}
	}
	if mask != nil {
		if mask.Shape != v.Shape {
			return &ConfigError{Field: "mask", Reason: fmt.Sprintf("shape %s does not match volume %s", mask.Shape, v.Shape)}
		}
		if len(mask.Known) != v.Len() {
			return &ConfigError{Field: "mask", Reason: "flag array does not match the volume size"}
		}
	}
	return nil
}
