// Package orchestrator drives one document through the extraction
// pipeline: mode selection, per-document timeout enforcement, and the
// Normal-to-Safe fallback on failure or timeout. It is the only package
// that opens and closes a pdfadapter.Document.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cardenuto-lab/pdffigures/assemble"
	"github.com/cardenuto-lab/pdffigures/config"
	"github.com/cardenuto-lab/pdffigures/pagedriver"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
	"github.com/cardenuto-lab/pdffigures/pixelwriter"
	"github.com/cardenuto-lab/pdffigures/postprocess"
)

// Mode selects which extraction variant Document runs.
type Mode int

const (
	// ModeNormal runs the full correlate/cluster/assemble pipeline, with a
	// wall-clock timeout that falls back to ModeSafe on expiry or failure.
	ModeNormal Mode = iota
	// ModeSafe extracts only xref-addressable images, with no correlation
	// or compositing.
	ModeSafe
	// ModeUnsafe dumps every layout image block with no xref correlation.
	ModeUnsafe
)

func (m Mode) String() string {
	switch m {
	case ModeSafe:
		return "safe"
	case ModeUnsafe:
		return "unsafe"
	default:
		return "normal"
	}
}

// Document extracts figures from the PDF at path into a subdirectory of
// outRoot named after the input's basename. The Post-processor always runs
// on whatever output exists, even when the extraction itself failed.
func Document(adapter pdfadapter.Adapter, path, outRoot string, mode Mode, cfg *config.Config, log *logrus.Logger) error {
	if log == nil {
		log = logrus.New()
	}
	outDir := filepath.Join(outRoot, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "orchestrator: creating output dir %s", outDir)
	}

	var runErr error
	switch mode {
	case ModeNormal:
		runErr = runNormalWithFallback(adapter, path, outDir, cfg, log)
	case ModeSafe:
		runErr = runSafe(adapter, path, outDir, cfg, log)
	case ModeUnsafe:
		runErr = runUnsafe(adapter, path, outDir, cfg, log)
	default:
		return fmt.Errorf("orchestrator: unknown mode %v", mode)
	}

	if err := postprocess.Run(outDir); err != nil {
		log.WithError(err).WithField("document", path).Warn("post-processing failed")
	}

	return runErr
}

// runNormalWithFallback runs Normal mode under a per-document timeout; on
// timeout or any other failure it purges the partial output directory and
// retries in Safe mode, per the documented Normal -> Safe -> fail chain.
func runNormalWithFallback(adapter pdfadapter.Adapter, path, outDir string, cfg *config.Config, log *logrus.Logger) error {
	err := runNormal(adapter, path, outDir, cfg, log)
	if err == nil {
		return nil
	}
	log.WithError(err).WithField("document", path).Warn("normal-mode extraction failed, falling back to safe mode")

	if err := os.RemoveAll(outDir); err != nil {
		return errors.Wrapf(err, "orchestrator: purging partial output %s", outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "orchestrator: recreating output dir %s", outDir)
	}

	if safeErr := runSafe(adapter, path, outDir, cfg, log); safeErr != nil {
		return errors.Wrapf(safeErr, "orchestrator: safe-mode fallback also failed for %s", path)
	}
	return nil
}

// runNormal opens path and drives the page driver over every page under a
// wall-clock deadline, checked between pages (the next safe boundary). A
// page-level parse failure abandons the whole document's Normal attempt,
// since a partially-correlated document is worse than a clean Safe-mode
// retry.
func runNormal(adapter pdfadapter.Adapter, path, outDir string, cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Extraction.Timeout)
	defer cancel()

	doc, err := adapter.Open(path)
	if err != nil {
		return errors.Wrapf(err, "orchestrator: opening %s", path)
	}
	defer doc.Close()

	counter := &pagedriver.Counter{}
	for page := 1; page <= doc.PageCount(); page++ {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "orchestrator: timed out on page %d of %s", page, path)
		default:
		}

		n, err := pagedriver.Page(doc, page, cfg.Extraction, outDir, counter)
		if err != nil {
			return errors.Wrapf(err, "orchestrator: page %d of %s failed", page, path)
		}
		log.WithFields(logrus.Fields{"document": path, "page": page, "written": n}).Debug("page extracted")
	}
	return nil
}

// runSafe extracts one file per xref image with no correlation or
// compositing, sharing only the colorspace decision table and write-out
// path with Normal mode.
func runSafe(adapter pdfadapter.Adapter, path, outDir string, cfg *config.Config, log *logrus.Logger) error {
	doc, err := adapter.Open(path)
	if err != nil {
		return errors.Wrapf(err, "orchestrator: opening %s for safe mode", path)
	}
	defer doc.Close()

	counter := &pagedriver.Counter{}
	for page := 1; page <= doc.PageCount(); page++ {
		xrefs, err := doc.XrefImages(page)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"document": path, "page": page}).Warn("safe mode: listing xref images failed, skipping page")
			continue
		}
		for _, xi := range xrefs {
			if err := writeSafeRecord(doc, xi, page, cfg.Extraction, outDir, counter); err != nil {
				log.WithError(err).WithFields(logrus.Fields{"document": path, "page": page, "xref": xi.Xref}).Debug("safe mode: skipping xref image")
			}
		}
	}
	return nil
}

func writeSafeRecord(doc pdfadapter.Document, xi pdfadapter.XrefImage, page int, ecfg config.Extraction, outDir string, counter *pagedriver.Counter) error {
	pm, err := doc.Pixmap(xi.Xref)
	if err != nil {
		return err
	}
	src := pixelwriter.Source{
		Width:         xi.Width,
		Height:        xi.Height,
		AltColorspace: xi.AltColorspaceName,
		Pixmap:        pm,
	}
	if xi.SMaskXref != 0 {
		if maskPm, err := doc.Pixmap(xi.SMaskXref); err == nil {
			src.MaskPixmap = maskPm
		}
	}

	n := counter.Next()
	path := filepath.Join(outDir, assemble.SafeModeFilename(page, n))
	_, err = pixelwriter.Write(src, path, ecfg.MinImageWidth, ecfg.MinImageHeight)
	return err
}

// runUnsafe writes every layout image block directly, with no xref
// correlation: the content stream walker already gives each block a
// page-space bbox, so the Normal-mode coordinate-bearing filename applies.
func runUnsafe(adapter pdfadapter.Adapter, path, outDir string, cfg *config.Config, log *logrus.Logger) error {
	doc, err := adapter.Open(path)
	if err != nil {
		return errors.Wrapf(err, "orchestrator: opening %s for unsafe mode", path)
	}
	defer doc.Close()

	counter := &pagedriver.Counter{}
	for page := 1; page <= doc.PageCount(); page++ {
		blocks, err := doc.LayoutBlocks(page)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"document": path, "page": page}).Warn("unsafe mode: listing layout blocks failed, skipping page")
			continue
		}
		for _, b := range blocks {
			if err := writeUnsafeBlock(b, page, cfg.Extraction, outDir, counter); err != nil {
				log.WithError(err).WithFields(logrus.Fields{"document": path, "page": page}).Debug("unsafe mode: skipping layout block")
			}
		}
	}
	return nil
}

func writeUnsafeBlock(b pdfadapter.LayoutBlock, page int, ecfg config.Extraction, outDir string, counter *pagedriver.Counter) error {
	pm := pixmapFromRawBlock(b)
	if pm == nil {
		return fmt.Errorf("orchestrator: layout block has %d raw bytes, not a recognizable sample count for %dx%d", len(b.RawImageBytes), b.Width, b.Height)
	}
	src := pixelwriter.Source{Width: b.Width, Height: b.Height, Pixmap: pm}

	n := counter.Next()
	name := assemble.Filename(page, n, b.BBox.X0, b.BBox.Y0, b.BBox.X1, b.BBox.Y1)
	_, err := pixelwriter.Write(src, filepath.Join(outDir, name), ecfg.MinImageWidth, ecfg.MinImageHeight)
	return err
}

// pixmapFromRawBlock guesses a layout block's colorspace from its raw
// sample count, since the content-stream walker reports pixel dimensions
// but not a colorspace name (unlike an xref, which carries one). Returns
// nil when the byte count matches none of Gray/RGB/CMYK.
func pixmapFromRawBlock(b pdfadapter.LayoutBlock) pdfadapter.Pixmap {
	n := b.Width * b.Height
	switch len(b.RawImageBytes) {
	case n:
		return pdfadapter.NewPixmap(pdfadapter.ColorspaceGray, b.Width, b.Height, b.RawImageBytes)
	case n * 3:
		return pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, b.Width, b.Height, b.RawImageBytes)
	case n * 4:
		return pdfadapter.NewPixmap(pdfadapter.ColorspaceCMYK, b.Width, b.Height, b.RawImageBytes)
	default:
		return nil
	}
}
