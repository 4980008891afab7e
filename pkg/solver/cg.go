// Package solver implements a conjugate-gradient least-squares solver whose
// model is projected back onto the known data after every update.
package solver

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"seismicslicer/internal/models"
)

// Operator is a linear map with an exact adjoint
type Operator interface {
	// Dims returns the sizes of the data space (rows) and model space (cols)
	Dims() (rows, cols int)

	// Forward computes data = L*model, accumulating when add is set
	Forward(data, model []float64, add bool)

	// Adjoint computes model = L'*data, accumulating when add is set
	Adjoint(model, data []float64, add bool)
}

// Params controls the iteration
type Params struct {
	// Iterations is the hard iteration budget; the loop never runs longer
	Iterations int

	// Tolerance stops the loop once the projected gradient norm has dropped
	// below Tolerance times its initial value. Zero runs the full budget.
	Tolerance float64

	// Verbose logs the residual norm of every iteration to Logger
	Verbose bool
	Logger  zerolog.Logger
}

// DefaultParams returns the settings used by the interpolation entry point
func DefaultParams() Params {
	return Params{Iterations: 100, Tolerance: 1e-8, Logger: zerolog.Nop()}
}

// Result holds the solution and the convergence history of one solve
type Result struct {
	// Model is the solution; known entries equal x0 bit for bit
	Model []float64

	// Iterations is the number of completed updates
	Iterations int

	// ResidualNorms[k] is ||L m|| after k updates; index 0 is the start model
	ResidualNorms []float64

	// Converged is set when the loop stopped before the budget ran out
	Converged bool
}

// Solve minimises ||L m||^2 over the entries of m not flagged in known,
// starting from x0 and holding the known entries at their x0 values.
// A nil known slice leaves every entry free.
func Solve(op Operator, x0 []float64, known []bool, params Params) (*Result, error) {
	rows, cols := op.Dims()
	if params.Iterations < 1 {
		return nil, &models.ConfigError{Field: "iterations", Reason: fmt.Sprintf("must be positive, got %d", params.Iterations)}
	}
	if params.Tolerance < 0 || math.IsNaN(params.Tolerance) {
		return nil, &models.ConfigError{Field: "tolerance", Reason: fmt.Sprintf("must be non-negative, got %g", params.Tolerance)}
	}
	if len(x0) != cols {
		return nil, &models.ConfigError{Field: "model", Reason: fmt.Sprintf("got %d values for %d columns", len(x0), cols)}
	}
	if known != nil && len(known) != cols {
		return nil, &models.ConfigError{Field: "mask", Reason: fmt.Sprintf("got %d flags for %d columns", len(known), cols)}
	}

	m := make([]float64, cols)
	copy(m, x0)

	// r = -L m
	r := make([]float64, rows)
	op.Forward(r, m, false)
	floats.Scale(-1, r)

	g := make([]float64, cols)
	op.Adjoint(g, r, false)
	project(g, known)

	gamma := floats.Dot(g, g)
	rnorm := floats.Norm(r, 2)
	if !finite(gamma) || !finite(rnorm) {
		return nil, &models.DivergenceError{Stage: "cg", Iteration: 0}
	}

	result := &Result{Model: m, ResidualNorms: []float64{rnorm}}
	if gamma == 0 {
		// Nothing to update: the start model is already consistent
		result.Converged = true
		return result, nil
	}

	gamma0 := gamma
	p := make([]float64, cols)
	copy(p, g)
	q := make([]float64, rows)
	dm := make([]float64, cols)
	dr := make([]float64, rows)

	for iter := 1; iter <= params.Iterations; iter++ {
		op.Forward(q, p, false)
		delta := floats.Dot(q, q)
		if !finite(delta) {
			return nil, &models.DivergenceError{Stage: "cg", Iteration: iter}
		}
		if delta == 0 {
			result.Converged = true
			break
		}

		alpha := gamma / delta
		if !finite(alpha) {
			return nil, &models.DivergenceError{Stage: "cg", Iteration: iter}
		}

		vecmath.ScaleBlock(dm, p, alpha)
		vecmath.AddBlockInPlace(m, dm)
		restore(m, x0, known)

		vecmath.ScaleBlock(dr, q, -alpha)
		vecmath.AddBlockInPlace(r, dr)

		rnorm = floats.Norm(r, 2)
		if !finite(rnorm) || !allFinite(m) {
			return nil, &models.DivergenceError{Stage: "cg", Iteration: iter}
		}
		result.ResidualNorms = append(result.ResidualNorms, rnorm)
		result.Iterations = iter

		op.Adjoint(g, r, false)
		project(g, known)
		gammaNew := floats.Dot(g, g)
		if !finite(gammaNew) {
			return nil, &models.DivergenceError{Stage: "cg", Iteration: iter}
		}

		if params.Verbose {
			params.Logger.Info().
				Int("iteration", iter).
				Float64("residual", rnorm).
				Float64("gradient", math.Sqrt(gammaNew)).
				Msg("cg step")
		}

		if gammaNew <= params.Tolerance*params.Tolerance*gamma0 {
			result.Converged = true
			break
		}

		floats.Scale(gammaNew/gamma, p)
		floats.Add(p, g)
		gamma = gammaNew
	}

	return result, nil
}

// project zeroes the gradient on known entries
func project(g []float64, known []bool) {
	if known == nil {
		return
	}
	for i, k := range known {
		if k {
			g[i] = 0
		}
	}
}

// restore resets known entries to their observed values
func restore(m, x0 []float64, known []bool) {
	if known == nil {
		return
	}
	for i, k := range known {
		if k {
			m[i] = x0[i]
		}
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if !finite(x) {
			return false
		}
	}
	return true
}
