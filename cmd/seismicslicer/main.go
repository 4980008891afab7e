package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"seismicslicer/internal/logger"
	"seismicslicer/pkg/config"
	"seismicslicer/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Raw float32 cube to process (header in <input>.yaml)")
	dip1File := flag.String("dip1", "", "Inline slope cube in samples per trace")
	dip2File := flag.String("dip2", "", "Crossline slope cube in samples per trace")
	maskFile := flag.String("mask", "", "Optional cube whose non-zero samples are known (default: non-zero input samples)")
	outputFile := flag.String("output", "output.f32", "Output cube")
	configPath := flag.String("config", "seismicslicer.yaml", "YAML configuration file")
	method := flag.String("method", "", "Processing method: interpolate or filter (overrides config)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (overrides config)")
	sections := flag.Bool("sections", false, "Render central inline, crossline and time sections as PNG")
	verbose := flag.Bool("verbose", false, "Log every solver iteration and filter progress")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputFile == "" || *dip1File == "" || *dip2File == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *method != "" {
		cfg.Processing.Method = *method
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *sections {
		cfg.Output.SaveSections = true
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	fmt.Println("================================")
	fmt.Println("STRUCTURE-ORIENTED SEISMIC INTERPOLATION AND FILTERING")
	fmt.Println("Plane-wave destruction / dip-steered median")
	fmt.Println("================================")

	params := &pipeline.Params{
		InputFile:        *inputFile,
		DipInlineFile:    *dip1File,
		DipCrosslineFile: *dip2File,
		MaskFile:         *maskFile,
		OutputFile:       *outputFile,
		Config:           cfg,
		Logger:           logger.NewConsole(cfg.Output.Verbose),
	}

	processor := pipeline.NewProcessor(params)

	fmt.Printf("Starting %s with %d cores...\n", cfg.Processing.Method, cfg.Processing.NumCores)
	startTime := time.Now()
	if err := processor.Process(); err != nil {
		log.Fatalf("Processing failed: %v", err)
	}
	processingTime := time.Since(startTime)

	report := processor.GetReport()
	fmt.Printf("\nProcessing completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output cube saved to: %s\n", *outputFile)
	fmt.Printf("Report saved to: %s\n\n", pipeline.ReportPath(*outputFile))

	fmt.Printf("Quality Metrics:\n")
	fmt.Printf("================\n")
	fmt.Printf("RMSE: %.6f\n", report.Metrics.RMSE)
	fmt.Printf("Correlation: %.4f\n", report.Metrics.Correlation)
	fmt.Printf("Signal-to-difference ratio: %.2f dB\n", report.Metrics.SNR)
	fmt.Printf("Removed energy: %.2f%%\n", 100*report.Metrics.RemovedEnergy)
	fmt.Printf("Least-squares gain: %.4f\n", report.Metrics.Gain)
	fmt.Printf("Dominant frequency: %.4g -> %.4g\n", report.InputPeak, report.OutputPeak)

	if report.Method == "interpolate" {
		fmt.Printf("Solver iterations: %d (converged: %v)\n", report.Iterations, report.Converged)
	} else if report.Windows != "" {
		fmt.Printf("Window map saved to: %s\n", report.Windows)
	}

	if len(report.Sections) > 0 {
		fmt.Println("\nSections saved:")
		for _, s := range report.Sections {
			fmt.Printf("- %s\n", s)
		}
	}
}
