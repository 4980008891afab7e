// Package pipeline runs the complete processing flow on cube files:
// load, interpolate or filter, measure, save and optionally render sections.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"seismicslicer/internal/models"
	"seismicslicer/pkg/config"
	"seismicslicer/pkg/cube"
	"seismicslicer/pkg/interpolation"
	"seismicslicer/pkg/qc"
	"seismicslicer/pkg/structfilter"
	"seismicslicer/pkg/visualization"
)

// Params holds the input and output locations of one run
type Params struct {
	// InputFile is the raw cube to process
	InputFile string

	// DipInlineFile and DipCrosslineFile hold the slope cubes
	DipInlineFile    string
	DipCrosslineFile string

	// MaskFile is an optional cube whose non-zero samples are known.
	// When empty the mask is inferred from the input.
	MaskFile string

	// OutputFile is where the processed cube is written
	OutputFile string

	// Config selects the method and its parameters
	Config *config.Config

	Logger zerolog.Logger
}

// Report summarises one run and is written next to the output as
// <output>.qc.yaml
type Report struct {
	Method     string      `yaml:"method"`
	Shape      string      `yaml:"shape"`
	Iterations int         `yaml:"iterations,omitempty"`
	Converged  bool        `yaml:"converged,omitempty"`
	Metrics    *qc.Metrics `yaml:"metrics"`

	// Dominant frequency before and after processing
	InputPeak  float64 `yaml:"inputPeak"`
	OutputPeak float64 `yaml:"outputPeak"`

	// Windows is the path of the adaptive window map, when one was written
	Windows string `yaml:"windows,omitempty"`

	Sections []string `yaml:"sections,omitempty"`
}

// Processor handles one processing run.
//
// The run consists of:
// 1. Loading the input, dip and mask cubes
// 2. Dip-constrained interpolation or structure-oriented median filtering
// 3. Measuring the difference between input and output
// 4. Saving the output cube, the window map and the report
// 5. Optionally rendering the central sections
type Processor struct {
	params *Params

	input   *models.Volume
	dips    *models.DipField
	mask    *models.Mask
	output  *models.Volume
	windows *models.WindowMap
	report  Report
}

// NewProcessor creates a processor; a nil Config selects the defaults
func NewProcessor(params *Params) *Processor {
	if params.Config == nil {
		params.Config = config.DefaultConfig()
	}
	return &Processor{params: params}
}

// Process runs the complete pipeline
func (p *Processor) Process() error {
	cfg := p.params.Config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Println("Step 1: Loading cubes...")
	if err := p.load(); err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	switch cfg.Processing.Method {
	case "interpolate":
		fmt.Println("Step 2: Interpolating missing samples along the dips...")
		if err := p.interpolate(); err != nil {
			return fmt.Errorf("failed to interpolate: %w", err)
		}
	case "filter":
		fmt.Println("Step 2: Applying structure-oriented median filter...")
		if err := p.filter(); err != nil {
			return fmt.Errorf("failed to filter: %w", err)
		}
	}

	fmt.Println("Step 3: Calculating quality metrics...")
	if err := p.measure(); err != nil {
		return fmt.Errorf("failed to compute metrics: %w", err)
	}

	fmt.Println("Step 4: Saving results...")
	if err := p.save(); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	if cfg.Output.SaveSections {
		fmt.Println("Step 5: Rendering sections...")
		if err := p.renderSections(); err != nil {
			return fmt.Errorf("failed to render sections: %w", err)
		}
	}

	return p.writeReport()
}

func (p *Processor) load() error {
	vol, err := cube.Read(p.params.InputFile)
	if err != nil {
		return err
	}
	dips, err := cube.ReadDips(p.params.DipInlineFile, p.params.DipCrosslineFile)
	if err != nil {
		return err
	}
	var mask *models.Mask
	if p.params.MaskFile != "" {
		if mask, err = cube.ReadMask(p.params.MaskFile); err != nil {
			return err
		}
	}
	if err := models.CheckShapes(vol, dips, mask); err != nil {
		return err
	}

	p.input, p.dips, p.mask = vol, dips, mask
	p.report.Shape = vol.Shape.String()
	p.params.Logger.Info().
		Str("input", p.params.InputFile).
		Str("shape", vol.Shape.String()).
		Bool("mask", mask != nil).
		Msg("cubes loaded")
	return nil
}

func (p *Processor) interpolate() error {
	params := p.params.Config.InterpolationParams()
	params.Logger = p.params.Logger

	res, err := interpolation.Interpolate(p.input, p.mask, p.dips, params)
	if err != nil {
		return err
	}
	p.output = res.Volume
	p.report.Method = "interpolate"
	p.report.Iterations = res.Iterations
	p.report.Converged = res.Converged
	if !res.Converged {
		p.params.Logger.Warn().Int("iterations", res.Iterations).Msg("iteration budget exhausted before convergence")
	}
	return nil
}

func (p *Processor) filter() error {
	params, err := p.params.Config.FilterParams()
	if err != nil {
		return err
	}
	params.Logger = p.params.Logger
	if p.params.Config.Output.Verbose {
		params.Progress = progressPrinter()
	}

	res, err := structfilter.Filter(p.input, p.dips, params)
	if err != nil {
		return err
	}
	p.output = res.Volume
	p.windows = res.Windows
	p.report.Method = "filter"
	return nil
}

// progressPrinter draws a progress bar on stdout
func progressPrinter() structfilter.ProgressCallback {
	const width = 40
	return func(completed, total int) {
		bars := completed * width / total
		fmt.Printf("\r[%s%s] %d/%d traces",
			strings.Repeat("=", bars), strings.Repeat(" ", width-bars), completed, total)
		if completed == total {
			fmt.Println()
		}
	}
}

func (p *Processor) measure() error {
	m, err := qc.Compare(p.input, p.output)
	if err != nil {
		return err
	}
	p.report.Metrics = m

	in, err := qc.AverageSpectrum(p.input)
	if err != nil {
		return err
	}
	out, err := qc.AverageSpectrum(p.output)
	if err != nil {
		return err
	}
	p.report.InputPeak = in.Peak()
	p.report.OutputPeak = out.Peak()

	p.params.Logger.Info().
		Float64("rmse", m.RMSE).
		Float64("correlation", m.Correlation).
		Float64("snr_db", m.SNR).
		Float64("removed_energy", m.RemovedEnergy).
		Float64("gain", m.Gain).
		Msg("quality metrics")
	return nil
}

func (p *Processor) save() error {
	if err := cube.Write(p.params.OutputFile, p.output); err != nil {
		return err
	}
	if p.windows == nil {
		return nil
	}

	// The window map is stored as a cube so the same tools can read it
	w := models.Zeros(p.windows.Shape)
	w.Geometry = p.output.Geometry
	for i, n := range p.windows.Data {
		w.Data[i] = float64(n)
	}
	path := WindowsPath(p.params.OutputFile)
	if err := cube.Write(path, w); err != nil {
		return err
	}
	p.report.Windows = path
	return nil
}

func (p *Processor) renderSections() error {
	dir := p.params.Config.Output.SectionsDir
	base := strings.TrimSuffix(filepath.Base(p.params.OutputFile), filepath.Ext(p.params.OutputFile))

	for _, s := range []struct {
		name string
		vol  *models.Volume
	}{
		{base + "_input", p.input},
		{base + "_output", p.output},
	} {
		paths, err := visualization.NewViewer(s.vol).SaveSections(dir, s.name)
		if err != nil {
			return err
		}
		p.report.Sections = append(p.report.Sections, paths...)
	}
	return nil
}

func (p *Processor) writeReport() error {
	data, err := yaml.Marshal(&p.report)
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}
	if err := os.WriteFile(ReportPath(p.params.OutputFile), data, 0644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// WindowsPath returns where the adaptive window map of an output is stored
func WindowsPath(output string) string {
	return output + ".windows"
}

// ReportPath returns where the report of an output is stored
func ReportPath(output string) string {
	return output + ".qc.yaml"
}

// GetReport returns the summary of the last run
func (p *Processor) GetReport() Report {
	return p.report
}

// GetOutput returns the processed volume of the last run
func (p *Processor) GetOutput() *models.Volume {
	return p.output
}
