package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure classes. Every typed error below
// unwraps to one of them, so callers can branch with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrDivergence    = errors.New("numerical divergence")
	ErrBoundary      = errors.New("boundary exhausted")
)

// ConfigError reports a parameter or shape that was rejected before any
// computation started
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// DivergenceError reports a non-finite value produced during an iterative
// solve or a trajectory trace
type DivergenceError struct {
	// Stage names the computation that diverged ("cg", "spray")
	Stage string

	// Iteration is the CG iteration, or the flat sample index for spray
	Iteration int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s diverged at iteration %d: non-finite value", e.Stage, e.Iteration)
}

func (e *DivergenceError) Unwrap() error { return ErrDivergence }

// BoundaryError reports a request for a lateral location outside the volume
type BoundaryError struct {
	I1, I2 int
	Shape  Shape
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("location (%d,%d) outside volume %s", e.I1, e.I2, e.Shape)
}

func (e *BoundaryError) Unwrap() error { return ErrBoundary }
