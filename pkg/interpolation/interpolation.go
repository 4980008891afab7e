// Package interpolation fills missing samples of a seismic volume by
// minimising the energy of plane-wave destruction along both lateral axes,
// holding the recorded samples fixed.
package interpolation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"seismicslicer/internal/models"
	"seismicslicer/pkg/pwd"
	"seismicslicer/pkg/solver"
)

// Params holds the parameters for dip-constrained interpolation
type Params struct {
	Order      int     // Stencil half-length of the destruction filter (odd)
	Iterations int     // Conjugate-gradient iteration budget
	Jump1      int     // Inline stencil decimation
	Jump2      int     // Crossline stencil decimation
	Drift      int     // Constant slope offset in samples
	AutoDrift  bool    // Remove the rounded local slope at every sample
	Tolerance  float64 // Relative gradient norm at which iteration stops
	Verbose    bool    // Log every solver iteration
	Workers    int     // Goroutines per operator application (0 = all cores)

	Logger zerolog.Logger
}

// DefaultParams returns the settings used when nothing is configured
func DefaultParams() Params {
	return Params{
		Order:      1,
		Iterations: 100,
		Jump1:      1,
		Jump2:      1,
		Tolerance:  1e-8,
		Logger:     zerolog.Nop(),
	}
}

// Result is the reconstructed volume with its convergence history
type Result struct {
	Volume        *models.Volume
	Iterations    int
	ResidualNorms []float64
	Converged     bool
	Elapsed       time.Duration
}

// Interpolate reconstructs the samples of vol not flagged in mask. A nil
// mask is inferred from vol: samples exactly equal to zero are missing.
// Known samples are returned unchanged and vol itself is never modified.
func Interpolate(vol *models.Volume, mask *models.Mask, dips *models.DipField, params Params) (*Result, error) {
	if vol == nil || dips == nil {
		return nil, &models.ConfigError{Field: "input", Reason: "volume and dips are required"}
	}
	if mask == nil {
		mask = models.InferMask(vol)
	}
	if err := models.CheckShapes(vol, dips, mask); err != nil {
		return nil, err
	}

	start := time.Now()
	log := params.Logger
	known := mask.CountKnown()
	log.Info().
		Str("shape", vol.Shape.String()).
		Int("known", known).
		Int("missing", vol.Len()-known).
		Int("order", params.Order).
		Msg("starting dip-constrained interpolation")

	op, err := pwd.NewStack(dips, pwd.Params{
		Order:     params.Order,
		Drift:     params.Drift,
		AutoDrift: params.AutoDrift,
		Workers:   params.Workers,
	}, params.Jump1, params.Jump2)
	if err != nil {
		return nil, fmt.Errorf("building destruction operator: %w", err)
	}

	// Missing samples start from zero whatever the input holds there
	x0 := make([]float64, vol.Len())
	for i, k := range mask.Known {
		if k {
			x0[i] = vol.Data[i]
		}
	}

	sol, err := solver.Solve(op, x0, mask.Known, solver.Params{
		Iterations: params.Iterations,
		Tolerance:  params.Tolerance,
		Verbose:    params.Verbose,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("solving for missing samples: %w", err)
	}

	out, err := models.NewVolume(vol.Shape, sol.Model)
	if err != nil {
		return nil, err
	}
	out.Geometry = vol.Geometry

	result := &Result{
		Volume:        out,
		Iterations:    sol.Iterations,
		ResidualNorms: sol.ResidualNorms,
		Converged:     sol.Converged,
		Elapsed:       time.Since(start),
	}
	log.Info().
		Int("iterations", result.Iterations).
		Bool("converged", result.Converged).
		Float64("residual", result.ResidualNorms[len(result.ResidualNorms)-1]).
		Dur("elapsed", result.Elapsed).
		Msg("interpolation complete")
	return result, nil
}
