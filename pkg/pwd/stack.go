package pwd

import (
	"fmt"

	"seismicslicer/internal/models"
)

// Stack concatenates the inline and crossline destruction operators into
// L = [L1; L2]. The data space holds 2*n residuals: the first n from the
// inline operator, the next n from the crossline operator.
type Stack struct {
	Inline    *AllPass
	Crossline *AllPass
}

// NewStack builds both axis operators. jump1 and jump2 override
// params.Jump for the inline and crossline operator respectively.
func NewStack(dips *models.DipField, params Params, jump1, jump2 int) (*Stack, error) {
	p1 := params
	p1.Jump = jump1
	l1, err := New(dips, AxisInline, p1)
	if err != nil {
		return nil, fmt.Errorf("inline operator: %w", err)
	}

	p2 := params
	p2.Jump = jump2
	l2, err := New(dips, AxisCrossline, p2)
	if err != nil {
		return nil, fmt.Errorf("crossline operator: %w", err)
	}

	return &Stack{Inline: l1, Crossline: l2}, nil
}

// Dims returns (2n, n)
func (s *Stack) Dims() (int, int) {
	n, _ := s.Inline.Dims()
	return 2 * n, n
}

// Forward computes data = L*model
func (s *Stack) Forward(data, model []float64, add bool) {
	n := len(model)
	s.Inline.Forward(data[:n], model, add)
	s.Crossline.Forward(data[n:], model, add)
}

// Adjoint computes model = L1'*d1 + L2'*d2
func (s *Stack) Adjoint(model, data []float64, add bool) {
	n := len(model)
	s.Inline.Adjoint(model, data[:n], add)
	s.Crossline.Adjoint(model, data[n:], true)
}
