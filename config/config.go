// Package config centralizes the heuristic constants the extraction
// pipeline tunes empirically: overlap tolerances, size thresholds, the
// Isolate tagging threshold, and the per-document timeout. The page driver
// and orchestrator read the overlap tolerances, minimum dimensions, timeout
// and positional-fallback switch from here; the assembler and correlator
// use their own package constants for the Assembler and Isolate settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Extraction holds the tunable heuristics used by the correlator,
// clusterer, assembler and post-processor.
type Extraction struct {
	// OverlapDistance is the edge-adjacency tolerance `d` for CheckOverlap.
	OverlapDistance float64 `toml:"overlap_distance"`
	// OverlapDistanceBBox is the corner-to-bbox tolerance `d_bbox` for CheckOverlap.
	OverlapDistanceBBox float64 `toml:"overlap_distance_bbox"`
	// AssemblerMaxDistance is the default ceiling of the Assembler's
	// widening-tolerance loop. The assemble package does not read this
	// field; it uses its own maxDistance constant (5.0).
	AssemblerMaxDistance float64 `toml:"assembler_max_distance"`
	// AssemblerDistanceStep is the default widening step of the Assembler's
	// tolerance. The assemble package does not read this field; it uses its
	// own distanceStep constant (0.5).
	AssemblerDistanceStep float64 `toml:"assembler_distance_step"`
	// CanvasOverlapGuardPx is the default canvas-space overlap limit for
	// the Assembler's merge guard. The assemble package does not read this
	// field; it uses its own canvasOverlapGuardPx constant (10).
	CanvasOverlapGuardPx int `toml:"canvas_overlap_guard_px"`
	// IsolateTagMinSide is the default size a repeated blit must exceed in
	// both axes before it gets a synthetic Isolate<n> alt_colorspace. The
	// correlate package does not read this field; it uses its own
	// IsolateTagMinSide constant (30).
	IsolateTagMinSide int `toml:"isolate_tag_min_side"`
	// MinImageWidth and MinImageHeight are the minimum surviving dimensions;
	// records smaller than this in either axis are skipped at write time.
	MinImageWidth  int `toml:"min_image_width"`
	MinImageHeight int `toml:"min_image_height"`
	// Timeout bounds a single document's Normal-mode extraction before the
	// orchestrator cancels it and falls back to Safe mode.
	Timeout time.Duration `toml:"timeout"`
	// EnablePositionalFallback gates the fragile positional-zip heuristic in
	// the page correlator; disabling it means xrefs that can't be
	// byte-matched to a layout block are recorded with a null bbox instead
	// of guessed.
	EnablePositionalFallback bool `toml:"enable_positional_fallback"`
}

// Config is the root extraction configuration.
type Config struct {
	Extraction Extraction `toml:"extraction"`
}

// Default returns the extraction heuristics at their default values.
func Default() *Config {
	return &Config{
		Extraction: Extraction{
			OverlapDistance:          1.0,
			OverlapDistanceBBox:      0.001,
			AssemblerMaxDistance:     5.0,
			AssemblerDistanceStep:    0.5,
			CanvasOverlapGuardPx:     10,
			IsolateTagMinSide:        30,
			MinImageWidth:            10,
			MinImageHeight:           10,
			Timeout:                  600 * time.Second,
			EnablePositionalFallback: true,
		},
	}
}

// Load reads a TOML config file at path, falling back to Default when the
// file does not exist: a missing config file is not an error, only a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
