package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"tissueseg/pkg/config"
	"tissueseg/pkg/raster"
	"tissueseg/pkg/regions"
	"tissueseg/pkg/segmentation"
)

func main() {
	// Parse command line arguments
	imagePath := flag.String("image", "", "Path to the tissue_hires_image")
	positionsPath := flag.String("positions", "", "Path to the tissue positions CSV (optional)")
	scalePath := flag.String("scalefactors", "", "Path to scalefactors_json.json (required with -positions)")
	configPath := flag.String("config", "tissueseg.yaml", "Path to YAML configuration file")
	outputDir := flag.String("output", "output", "Directory for the annotated table and boundary GeoJSON")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	writeConfig := flag.Bool("write-default-config", false, "Write a default config file to -config and exit")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatal().Err(err).Msg("failed to write default config")
		}
		log.Info().Str("path", *configPath).Msg("default config written")
		return
	}

	if *imagePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Output.Verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	foreground, err := raster.ParseDirection(cfg.Segmentation.Foreground)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	params := &segmentation.Params{
		ImagePath:         *imagePath,
		PositionsPath:     *positionsPath,
		ScaleFactorsPath:  *scalePath,
		OutputDir:         *outputDir,
		Channel:           cfg.Segmentation.Channel,
		Threshold:         cfg.Segmentation.Threshold,
		Foreground:        foreground,
		StructuringRadius: cfg.Segmentation.StructuringRadius,
		Filter: regions.FilterParams{
			MinArea:          cfg.Filter.MinArea,
			ExcludeLabels:    cfg.Filter.ExcludeLabels,
			ExcludeCentroids: cfg.Filter.ExcludeRegions,
		},
		KeepFraction:            cfg.Polygon.KeepFraction,
		FlipY:                   cfg.Polygon.FlipY,
		FootprintVertices:       cfg.Polygon.FootprintVertices,
		BoundaryName:            cfg.Output.BoundaryName,
		SaveIntermediaryResults: *saveIntermediary,
		IntermediaryDir:         *intermediaryDir,
	}

	segmenter := segmentation.NewSegmenter(params, log)

	startTime := time.Now()
	if err := segmenter.Process(); err != nil {
		log.Fatal().Err(err).Msg("segmentation failed")
	}
	elapsed := time.Since(startTime)

	metrics := segmenter.Metrics()
	fmt.Printf("\nSegmentation completed in %.2f seconds\n", elapsed.Seconds())
	fmt.Printf("Threshold used: %.4f\n", metrics.ThresholdUsed)
	fmt.Printf("Mask area: %d px\n", metrics.MaskArea)
	fmt.Printf("Regions found: %d, kept: %d\n", metrics.RegionCount, metrics.FilteredCount)
	fmt.Printf("Boundary vertices: %d traced, %d kept\n", metrics.VerticesTraced, metrics.VerticesKept)
	if metrics.DroppedPolygons > 0 {
		fmt.Printf("Degenerate outlines dropped: %d\n", metrics.DroppedPolygons)
	}

	if metrics.Spots.Total > 0 {
		fmt.Printf("\nSpot classification (%d spots):\n", metrics.Spots.Total)
		fmt.Printf("  same:              %d\n", metrics.Spots.Same)
		fmt.Printf("  external-only:     %d\n", metrics.Spots.ExternalOnly)
		fmt.Printf("  segmentation-only: %d\n", metrics.Spots.SegmentationOnly)
		fmt.Printf("  agreement rate:    %.1f%%\n", metrics.Spots.AgreementRate*100)
	}

	if *saveIntermediary {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", *intermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Println("- 01_threshold_mask: Binary mask after thresholding")
		fmt.Println("- 02_cleaned_mask: Mask after morphological cleanup")
		fmt.Println("- 03_filtered_labels: Surviving labeled regions")
		fmt.Println("- 04_boundary_overlay: Boundary drawn over the source channel")
	}
}
