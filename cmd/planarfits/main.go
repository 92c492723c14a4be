package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"planarimaging/pkg/config"
	"planarimaging/pkg/fits"
	"planarimaging/pkg/planar"
)

// options holds the command line after config defaults have been merged in.
type options struct {
	input      string
	output     string
	sampleType string
	info       bool
	average    bool
	groupBy    []string
	blur       bool
	blurSigma  float64
	previewDir string
	dumpPath   string
	dumpMode   string
	byteOrder  fits.ByteOrder
	cfg        *config.Config
}

func main() {
	inputPath := flag.String("input", "", "FITS file to read (.fits or .fits.gz)")
	outputPath := flag.String("output", "", "FITS file to write after processing")
	sampleType := flag.String("type", "float32", "Sample type: uint8, int8, int16, int32, int64, float32, float64")
	info := flag.Bool("info", false, "Print the geometry and metadata of every image")
	average := flag.Bool("average", false, "Average images sample by sample")
	groupBy := flag.String("group-by", "", "Comma-separated metadata keys; -average then averages each group separately")
	blur := flag.Bool("blur", false, "Gaussian-blur the channels listed in blur.channels (all if empty)")
	sigma := flag.Float64("sigma", 0, "Blur sigma in pixels (overrides blur.sigma)")
	previewDir := flag.String("preview", "", "Directory to save previews; a single image gets one preview per channel")
	dumpPath := flag.String("dump", "", "Prefix for headerless raw pixel dumps, one file per image")
	dumpMode := flag.String("dump-mode", "raw", "Dump conversion: raw, uint8, scaled-uint16, compressed-uint16")
	byteOrder := flag.String("byte-order", "", "Byte order of written FITS data: big or little (overrides codec.byteOrder)")
	configPath := flag.String("config", "planarfits.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	verbose := flag.Bool("verbose", true, "Print progress (overrides output.verbose)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["verbose"] {
		cfg.Output.Verbose = *verbose
	}
	if set["byte-order"] {
		cfg.Codec.ByteOrder = *byteOrder
	}
	if set["sigma"] {
		cfg.Blur.Sigma = *sigma
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	order, err := fits.ParseByteOrder(cfg.Codec.ByteOrder)
	if err != nil {
		log.Fatalf("Invalid byte order: %v", err)
	}

	opts := options{
		input:      *inputPath,
		output:     *outputPath,
		sampleType: *sampleType,
		info:       *info,
		average:    *average,
		previewDir: *previewDir,
		dumpPath:   *dumpPath,
		dumpMode:   *dumpMode,
		byteOrder:  order,
		cfg:        cfg,
	}
	opts.blur, opts.blurSigma = *blur, cfg.Blur.Sigma
	if *groupBy != "" {
		opts.groupBy = strings.Split(*groupBy, ",")
	}
	if opts.output != "" && cfg.Codec.Gzip && !strings.HasSuffix(strings.ToLower(opts.output), ".gz") {
		opts.output += ".gz"
	}

	startTime := time.Now()
	switch opts.sampleType {
	case "uint8":
		err = run[uint8](opts)
	case "int8":
		err = run[int8](opts)
	case "int16":
		err = run[int16](opts)
	case "int32":
		err = run[int32](opts)
	case "int64":
		err = run[int64](opts)
	case "float32":
		err = run[float32](opts)
	case "float64":
		err = run[float64](opts)
	default:
		log.Fatalf("Unsupported sample type %q", opts.sampleType)
	}
	if err != nil {
		log.Fatalf("planarfits failed: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("Completed in %.2f seconds\n", time.Since(startTime).Seconds())
	}
}

// run reads the input as samples of type T and applies each requested step in turn:
// average, blur, info, preview, dump, write.
func run[T planar.Sample](opts options) error {
	verbose := opts.cfg.Output.Verbose
	c, err := fits.ReadFile[T](opts.input)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Read %d image(s) from %s\n", c.Len(), opts.input)
	}

	if opts.average {
		var group planar.GroupingFunc[T]
		if len(opts.groupBy) > 0 {
			group = planar.GroupByMetadataValues[T](opts.groupBy...)
		}
		before := c.Len()
		if err := c.CondenseAverageImages(group); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Averaged %d image(s) down to %d\n", before, c.Len())
		}
	}

	if opts.blur {
		if err := blurAll(c, opts.cfg.Blur.Channels, opts.blurSigma); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Blurred with sigma %.3g pixels\n", opts.blurSigma)
		}
	}

	if opts.info {
		printInfo(c)
	}

	if opts.previewDir != "" {
		if err := savePreviews(c, opts.previewDir, opts.cfg); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Previews saved to: %s\n", opts.previewDir)
		}
	}

	if opts.dumpPath != "" {
		files, err := dumpAll(c, opts.dumpPath, opts.dumpMode)
		if err != nil {
			return err
		}
		if verbose {
			for _, f := range files {
				if f.mapping != nil {
					fmt.Printf("Dumped %s (value = %g * sample + %g)\n", f.path, f.mapping.Slope, f.mapping.Intercept)
					continue
				}
				fmt.Printf("Dumped %s\n", f.path)
			}
		}
	}

	if opts.output != "" {
		if err := fits.WriteFile(opts.output, c, opts.byteOrder); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Output saved to: %s (%s)\n", opts.output, opts.byteOrder)
		}
	}
	return nil
}
