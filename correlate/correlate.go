// Package correlate implements the page correlator: matching xref image
// objects to the layout image blocks painted on a page, producing the
// per-page working list of image records the clusterer and assembler
// operate on.
package correlate

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cardenuto-lab/pdffigures/pdfadapter"
	"github.com/cardenuto-lab/pdffigures/record"
)

// IsolateTagMinSide is the size an xref's repeated blit must exceed in both
// width and height (strictly greater than) before it gets tagged with a
// synthetic Isolate<n> alt colorspace to preserve identity across distinct
// composites.
const IsolateTagMinSide = 30

// Page builds the working list of image records for one page by matching
// xref images to layout image blocks via byte-equality, falling back to a
// positional pairing when byte-matching finds nothing at all and blocks
// are left over.
func Page(doc pdfadapter.Document, page int, enablePositionalFallback bool) ([]record.Image, error) {
	xrefs, err := doc.XrefImages(page)
	if err != nil {
		return nil, fmt.Errorf("correlate: listing xref images for page %d: %w", page, err)
	}
	blocks, err := doc.LayoutBlocks(page)
	if err != nil {
		return nil, fmt.Errorf("correlate: listing layout blocks for page %d: %w", page, err)
	}

	var recs []record.Image
	handled := map[record.Xref]bool{}

	for scanIdx, xi := range xrefs {
		if handled[xi.Xref] {
			continue
		}

		extracted, err := doc.ExtractImage(xi.Xref)
		if err != nil {
			// Decoder failure on a single image: skip the record, continue the page.
			continue
		}

		if xi.SMaskXref != 0 {
			rec, err := matchAlphaXref(doc, xi, extracted, &blocks)
			if err != nil {
				continue
			}
			recs = append(recs, rec)
			handled[xi.Xref] = true
			continue
		}

		pm, err := doc.Pixmap(xi.Xref)
		if err != nil || pm.ColorspaceName() == "" {
			continue
		}

		// A single xref can be blitted more than once on a page (a
		// repeated-image paint), so keep consuming matching blocks until
		// none remain, not just the first one. The second and later
		// sightings get a synthetic Isolate<n> alt-colorspace so they
		// keep a distinct identity through clustering, mirroring the
		// original extractor's inner while-loop over matching blocks.
		//
		// Matched against pm.Samples(), not extracted.Image: the latter is
		// the still-encoded stream (ExtractedImage's documented contract),
		// while a LayoutBlock's RawImageBytes is already-decoded raster
		// samples, so only the decoded pixmap is comparable to it.
		matches := 0
		for {
			blockIdx := findByteMatch(blocks, pm.Samples())
			if blockIdx < 0 {
				break
			}

			altColorspace := xi.AltColorspaceName
			if matches > 0 && extracted.Width > IsolateTagMinSide && extracted.Height > IsolateTagMinSide {
				altColorspace = fmt.Sprintf("Isolate%d", scanIdx)
			}

			rec := recordFromXref(xi, extracted, altColorspace)
			rec.BBox = blocks[blockIdx].BBox
			rec.HasBBox = true
			removeBlockAt(&blocks, blockIdx)
			recs = append(recs, rec)
			matches++
		}
		if matches == 0 {
			continue
		}
		handled[xi.Xref] = true
	}

	if noRecordGotBBox(recs) && len(blocks) > 0 && enablePositionalFallback {
		recs = positionalFallback(doc, xrefs, blocks, handled)
	}

	return recs, nil
}

// matchAlphaXref decodes the stencil-masked xref to its raw raster samples
// and scans the page's remaining layout blocks for one whose RawImageBytes
// match. On a match the record takes that block's bbox and the block is
// removed from further consideration; on a miss the record is still
// produced, with a null bbox.
func matchAlphaXref(doc pdfadapter.Document, xi pdfadapter.XrefImage, extracted pdfadapter.ExtractedImage, blocks *[]pdfadapter.LayoutBlock) (record.Image, error) {
	pm, err := doc.Pixmap(xi.Xref)
	if err != nil {
		return record.Image{}, err
	}

	rec := recordFromXref(xi, extracted, xi.AltColorspaceName)
	if idx := findByteMatch(*blocks, pm.Samples()); idx >= 0 {
		rec.BBox = (*blocks)[idx].BBox
		rec.HasBBox = true
		removeBlockAt(blocks, idx)
	}
	return rec, nil
}

func recordFromXref(xi pdfadapter.XrefImage, extracted pdfadapter.ExtractedImage, altColorspace string) record.Image {
	return record.Image{
		Xref:          xi.Xref,
		Ext:           extracted.Ext,
		Filter:        xi.FilterName,
		Colorspace:    componentCount(xi.ColorspaceName),
		AltColorspace: altColorspace,
		SMask:         xi.SMaskXref,
		Width:         extracted.Width,
		Height:        extracted.Height,
	}
}

func componentCount(csName string) record.Colorspace {
	switch csName {
	case pdfadapter.ColorspaceGray:
		return record.ColorspaceGray
	case pdfadapter.ColorspaceCMYK:
		return record.ColorspaceCMYK
	case pdfadapter.ColorspaceRGB:
		return record.ColorspaceRGB
	default:
		return record.ColorspaceUnknown
	}
}

func findByteMatch(blocks []pdfadapter.LayoutBlock, raw []byte) int {
	for i, b := range blocks {
		if bytesEqual(b.RawImageBytes, raw) {
			return i
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func removeBlockAt(blocks *[]pdfadapter.LayoutBlock, idx int) {
	*blocks = append((*blocks)[:idx], (*blocks)[idx+1:]...)
}

func noRecordGotBBox(recs []record.Image) bool {
	for _, r := range recs {
		if r.HasBBox {
			return false
		}
	}
	return true
}

// positionalFallback pairs unclaimed xrefs with remaining layout blocks in
// enumeration order. This is heuristic and may misalign; it exists only
// because byte-matching found nothing at all for the page, and is gated
// behind config so operators can disable it.
func positionalFallback(doc pdfadapter.Document, xrefs []pdfadapter.XrefImage, blocks []pdfadapter.LayoutBlock, handled map[record.Xref]bool) []record.Image {
	var recs []record.Image
	blockIdx := 0
	for _, xi := range xrefs {
		if handled[xi.Xref] {
			continue
		}
		extracted, err := doc.ExtractImage(xi.Xref)
		if err != nil {
			continue
		}
		rec := recordFromXref(xi, extracted, xi.AltColorspaceName)
		if xi.SMaskXref == 0 && blockIdx < len(blocks) {
			rec.BBox = blocks[blockIdx].BBox
			rec.HasBBox = true
			logrus.WithFields(logrus.Fields{"xref": xi.Xref, "block": blockIdx}).Info("correlate: positional fallback paired xref with layout block")
			blockIdx++
		}
		recs = append(recs, rec)
	}
	return recs
}
