// Package pagedriver orchestrates one page of Normal-mode extraction: run
// the correlator, cluster the result, and for each cluster either write it
// directly (singleton, or any alpha-bearing leader) or hand it to the
// assembler.
package pagedriver

import (
	"fmt"
	"path/filepath"

	"github.com/cardenuto-lab/pdffigures/assemble"
	"github.com/cardenuto-lab/pdffigures/cluster"
	"github.com/cardenuto-lab/pdffigures/config"
	"github.com/cardenuto-lab/pdffigures/correlate"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
	"github.com/cardenuto-lab/pdffigures/pixelwriter"
	"github.com/cardenuto-lab/pdffigures/record"
)

// Counter assigns sequential, document-unique output filenames. It is
// owned by the orchestrator and threaded through every page of a document
// so counters never repeat within an output directory.
type Counter struct{ n int }

// Next returns the next 1-based counter value.
func (c *Counter) Next() int {
	c.n++
	return c.n
}

// Page runs the full Normal-mode pipeline for one page, writing surviving
// records into outDir and returning the number of files written.
func Page(doc pdfadapter.Document, pageNum int, cfg config.Extraction, outDir string, counter *Counter) (int, error) {
	recs, err := correlate.Page(doc, pageNum, cfg.EnablePositionalFallback)
	if err != nil {
		return 0, fmt.Errorf("pagedriver: correlating page %d: %w", pageNum, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if len(recs) == 1 {
		return writeRecord(doc, recs[0], pageNum, cfg, outDir, counter)
	}

	clusters := cluster.Clusters(recs, cfg.OverlapDistance, cfg.OverlapDistanceBBox)

	written := 0
	for _, c := range clusters {
		members := make([]record.Image, 0, len(c))
		for _, idx := range c {
			members = append(members, recs[idx])
		}

		if len(members) == 1 || members[0].HasAlpha() {
			n, err := writeRecord(doc, members[0], pageNum, cfg, outDir, counter)
			if err != nil {
				return written, err
			}
			written += n
			continue
		}

		rasterized, err := rasterizeAll(doc, members)
		if err != nil {
			return written, err
		}
		assembled, err := assemble.Assemble(rasterized)
		if err != nil {
			return written, err
		}
		for _, rec := range assembled {
			n, err := writeSynthetic(rec, pageNum, cfg, outDir, counter)
			if err != nil {
				return written, err
			}
			written += n
		}
	}

	return written, nil
}

// rasterizeAll resolves each cluster member's decoded pixels through the
// PDF adapter so the assembler can composite them, without mutating the
// caller's copy of the correlator's working list.
func rasterizeAll(doc pdfadapter.Document, recs []record.Image) ([]record.Image, error) {
	out := make([]record.Image, len(recs))
	for i, r := range recs {
		pm, err := doc.Pixmap(r.Xref)
		if err != nil {
			return nil, fmt.Errorf("pagedriver: rasterizing xref for assembly: %w", err)
		}
		rgb, err := pm.ToSRGB()
		if err != nil {
			return nil, fmt.Errorf("pagedriver: converting xref to sRGB for assembly: %w", err)
		}
		png, err := rgb.PNG()
		if err != nil {
			return nil, fmt.Errorf("pagedriver: rendering xref for assembly: %w", err)
		}
		img, err := pixelwriter.DecodePNG(png)
		if err != nil {
			return nil, fmt.Errorf("pagedriver: decoding rasterized xref: %w", err)
		}
		r.Pixels = img
		out[i] = r
	}
	return out, nil
}

// writeRecord writes an xref-backed record (singleton cluster, or an
// alpha-bearing leader written via the direct stencil-compose path).
func writeRecord(doc pdfadapter.Document, r record.Image, pageNum int, cfg config.Extraction, outDir string, counter *Counter) (int, error) {
	pm, err := doc.Pixmap(r.Xref)
	if err != nil {
		return 0, nil
	}

	src := pixelwriter.Source{
		Width:         r.Width,
		Height:        r.Height,
		AltColorspace: r.AltColorspace,
		Pixmap:        pm,
	}
	if r.HasAlpha() {
		maskPm, err := doc.Pixmap(r.SMask)
		if err == nil {
			src.MaskPixmap = maskPm
		}
	}

	n := counter.Next()
	path := filepath.Join(outDir, filenameFor(r, pageNum, n))
	ok, err := pixelwriter.Write(src, path, cfg.MinImageWidth, cfg.MinImageHeight)
	if err != nil {
		return 0, fmt.Errorf("pagedriver: writing page %d record: %w", pageNum, err)
	}
	if !ok {
		return 0, nil
	}
	return 1, nil
}

// writeSynthetic writes an assembler-produced composite record, which
// already carries rendered pixels and never has alpha.
func writeSynthetic(r record.Image, pageNum int, cfg config.Extraction, outDir string, counter *Counter) (int, error) {
	src := pixelwriter.Source{Width: r.Width, Height: r.Height, Image: r.Pixels}
	n := counter.Next()
	path := filepath.Join(outDir, filenameFor(r, pageNum, n))
	ok, err := pixelwriter.Write(src, path, cfg.MinImageWidth, cfg.MinImageHeight)
	if err != nil {
		return 0, fmt.Errorf("pagedriver: writing page %d composite: %w", pageNum, err)
	}
	if !ok {
		return 0, nil
	}
	return 1, nil
}

func filenameFor(r record.Image, pageNum, counter int) string {
	if r.HasBBox {
		return assemble.Filename(pageNum, counter, r.BBox.X0, r.BBox.Y0, r.BBox.X1, r.BBox.Y1)
	}
	return assemble.SafeModeFilename(pageNum, counter)
}
