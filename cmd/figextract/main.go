// Command figextract recovers embedded raster figures from scientific
// PDFs. It is the thin CLI shell around the orchestrator: flag parsing,
// directory traversal, and the optional watch daemon all live here so the
// extraction core stays a pure library.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardenuto-lab/pdffigures/config"
	"github.com/cardenuto-lab/pdffigures/orchestrator"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
)

func main() {
	var input, output, configPath, modeFlag string
	var watch bool

	flag.StringVar(&input, "i", "", "Input PDF file or directory")
	flag.StringVar(&input, "input", "", "Input PDF file or directory")
	flag.StringVar(&output, "o", "", "Output directory for extracted figures")
	flag.StringVar(&output, "output", "", "Output directory for extracted figures")
	flag.StringVar(&configPath, "config", "config.toml", "Path to config file (TOML)")
	flag.StringVar(&modeFlag, "mode", "normal", "Extraction mode: normal, safe, or unsafe")
	flag.BoolVar(&watch, "watch", false, "Watch the input directory for new or modified PDFs")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	mode, err := parseMode(modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if input == "" || output == "" {
		fmt.Fprintln(os.Stderr, "Usage: figextract -i <input.pdf|dir> -o <output dir> [--mode normal|safe|unsafe] [--config config.toml]")
		fmt.Fprintln(os.Stderr, "       figextract -i <dir> -o <output dir> --watch")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := logrus.New()
	adapter := pdfadapter.PDFCPUAdapter{}

	if watch {
		if err := runWatchMode(adapter, input, output, mode, cfg, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	info, err := os.Stat(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: input path '%s' does not exist.\n", input)
		os.Exit(1)
	}

	if info.IsDir() {
		err = processDirectory(adapter, input, output, mode, cfg, log)
	} else {
		err = processSingleFile(adapter, input, output, mode, cfg, log)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseMode(s string) (orchestrator.Mode, error) {
	switch strings.ToLower(s) {
	case "normal", "":
		return orchestrator.ModeNormal, nil
	case "safe":
		return orchestrator.ModeSafe, nil
	case "unsafe":
		return orchestrator.ModeUnsafe, nil
	default:
		return orchestrator.ModeNormal, fmt.Errorf("unknown mode %q: want normal, safe, or unsafe", s)
	}
}

func processSingleFile(adapter pdfadapter.Adapter, inputFile, outputDir string, mode orchestrator.Mode, cfg *config.Config, log *logrus.Logger) error {
	if !strings.HasSuffix(strings.ToLower(inputFile), ".pdf") {
		return fmt.Errorf("input file '%s' must have a .pdf extension", inputFile)
	}
	if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
		return fmt.Errorf("output '%s' is a file; specify an output directory", outputDir)
	}

	fmt.Printf("Extracting '%s' (%s mode)...\n", inputFile, mode)
	start := time.Now()
	if err := orchestrator.Document(adapter, inputFile, outputDir, mode, cfg, log); err != nil {
		return err
	}
	fmt.Printf("Finished '%s' in %.2fs\n", filepath.Base(inputFile), time.Since(start).Seconds())
	return nil
}

func processDirectory(adapter pdfadapter.Adapter, inputDir, outputDir string, mode orchestrator.Mode, cfg *config.Config, log *logrus.Logger) error {
	if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
		return fmt.Errorf("input is a directory, but output '%s' is a file; specify an output directory", outputDir)
	}

	fmt.Printf("Scanning for PDFs in '%s'...\n", inputDir)

	var jobs []string
	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), ".pdf") {
			jobs = append(jobs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No PDF files found. Exiting.")
		return nil
	}

	fmt.Printf("Found %d PDFs to process.\n", len(jobs))
	start := time.Now()

	var (
		completed atomic.Int64
		wg        sync.WaitGroup
	)
	total := int64(len(jobs))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	errCh := make(chan string, len(jobs))

	for _, path := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer func() { <-sem; wg.Done() }()
			if err := orchestrator.Document(adapter, path, outputDir, mode, cfg, log); err != nil {
				errCh <- fmt.Sprintf("failed to extract '%s': %v", path, err)
			}
			n := completed.Add(1)
			fmt.Printf("\r[%d/%d] Extracted %s", n, total, filepath.Base(path))
		}(path)
	}
	wg.Wait()
	close(errCh)

	fmt.Println()
	for msg := range errCh {
		fmt.Fprintln(os.Stderr, msg)
	}

	fmt.Printf("Processed %d PDFs in %.2fs\n", len(jobs), time.Since(start).Seconds())
	return nil
}
