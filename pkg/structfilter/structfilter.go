// Package structfilter removes spatially incoherent noise by spraying every
// trace location along the local dips and replacing each sample by a median
// of the structure-aligned ensemble.
package structfilter

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"seismicslicer/internal/models"
	"seismicslicer/internal/parallel"
	"seismicslicer/pkg/median"
	"seismicslicer/pkg/spray"
)

// ProgressCallback reports how many trace locations are done
type ProgressCallback func(completed, total int)

// Params configures the structure-oriented median filter
type Params struct {
	Spray  spray.Params
	Median median.Params

	// Workers is the number of goroutines filtering trace locations
	// (0 = all cores)
	Workers int

	Progress ProgressCallback
	Logger   zerolog.Logger
}

// DefaultParams returns radius (2, 2), first order, eps 0.01 and a fixed
// median over the whole ensemble
func DefaultParams() Params {
	return Params{
		Spray:  spray.DefaultParams(),
		Median: median.Params{Mode: median.Fixed},
		Logger: zerolog.Nop(),
	}
}

// Result holds the filtered volume and, in adaptive mode, the window length
// chosen at every sample
type Result struct {
	Volume  *models.Volume
	Windows *models.WindowMap
	Elapsed time.Duration
}

// Filter applies the structure-oriented median to vol. The input is never
// modified.
func Filter(vol *models.Volume, dips *models.DipField, params Params) (*Result, error) {
	sprayer, err := spray.New(vol, dips, params.Spray)
	if err != nil {
		return nil, fmt.Errorf("preparing spray: %w", err)
	}
	for i, v := range vol.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &models.ConfigError{Field: "volume", Reason: fmt.Sprintf("non-finite sample at %d", i)}
		}
	}

	shape := vol.Shape
	traces := shape.N1 * shape.N2
	workers := parallel.Workers(params.Workers)
	if workers > traces {
		workers = traces
	}

	// one median filter per worker; each keeps its own scratch buffers
	filters := make([]*median.Filter, workers)
	for w := range filters {
		if filters[w], err = median.NewFilter(params.Median); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	log := params.Logger
	log.Info().
		Str("shape", shape.String()).
		Int("radius1", params.Spray.Radius1).
		Int("radius2", params.Spray.Radius2).
		Str("mode", params.Median.Mode.String()).
		Int("ensemble", params.Spray.Size()).
		Msg("starting structure-oriented median filter")

	out := models.Zeros(shape)
	out.Geometry = vol.Geometry

	var windows *models.WindowMap
	if params.Median.Mode == median.Adaptive {
		windows = &models.WindowMap{Shape: shape, Data: make([]int, shape.Len())}
	}

	jobs := make(chan int, traces)
	for i := 0; i < traces; i++ {
		jobs <- i
	}
	close(jobs)

	done := make(chan struct{}, traces)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for _, f := range filters {
		wg.Add(1)
		go func(f *median.Filter) {
			defer wg.Done()
			g := spray.NewGather(shape.N3, params.Spray)
			for trace := range jobs {
				i1, i2 := trace/shape.N2, trace%shape.N2
				if err := sprayer.Gather(i1, i2, g); err != nil {
					errs <- err
					return
				}
				off := shape.TraceOffset(i1, i2)
				var win []int
				if windows != nil {
					win = windows.Data[off : off+shape.N3]
				}
				f.Apply(g, out.Data[off:off+shape.N3], win)
				done <- struct{}{}
			}
		}(f)
	}

	// Progress is reported from a single goroutine
	var progress sync.WaitGroup
	progress.Add(1)
	go func() {
		defer progress.Done()
		completed := 0
		for range done {
			completed++
			if params.Progress != nil {
				params.Progress(completed, traces)
			}
		}
	}()

	wg.Wait()
	close(done)
	progress.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("filtering: %w", err)
	}

	result := &Result{Volume: out, Windows: windows, Elapsed: time.Since(start)}
	log.Info().Dur("elapsed", result.Elapsed).Msg("structure-oriented filter complete")
	return result, nil
}
