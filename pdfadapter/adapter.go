// Package pdfadapter is the sole PDF-library-specific layer in the
// extraction core. It is backed by github.com/pdfcpu/pdfcpu's file-level
// image and content-stream extraction, plus an in-package content-stream walker that
// tracks the current transformation matrix to recover layout image blocks —
// a capability pdfcpu's object-level API doesn't provide out of the box.
package pdfadapter

import (
	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/record"
)

// XrefImage is one entry from a page's xref image enumeration.
type XrefImage struct {
	Xref              record.Xref
	SMaskXref         record.Xref
	Width, Height     int
	BitsPerComponent  int
	ColorspaceName    string
	AltColorspaceName string
	FilterName        string
}

// LayoutBlock is one image block as painted on a page, in page-space
// coordinates, with its already-decoded raster bytes. It deliberately
// carries no xref: the underlying library (real or, here, our
// content-stream walker standing in for it) reports layout blocks without
// attribution to a source object, which is exactly the ambiguity the page
// correlator exists to resolve.
type LayoutBlock struct {
	BBox          geometry.Rect
	RawImageBytes []byte
	Width, Height int
}

// ExtractedImage is the result of resolving a single xref to its encoded
// stream and metadata.
type ExtractedImage struct {
	Ext           string
	SMask         record.Xref
	Colorspace    int
	Width, Height int
	Image         []byte
}

// Pixmap is a decoded, in-memory raster with an associated colorspace,
// standing in for fitz.Pixmap.
type Pixmap interface {
	ColorspaceName() string
	Width() int
	Height() int
	// Samples returns the raw interleaved component bytes (no alpha).
	Samples() []byte
	// ToSRGB returns a copy of this pixmap converted to DeviceRGB/sRGB.
	// A pixmap already in RGB returns itself.
	ToSRGB() (Pixmap, error)
	// WithAlpha returns a copy of this pixmap with per-pixel alpha taken
	// from another pixmap's Samples (same width/height, single channel).
	WithAlpha(alphaSamples []byte) Pixmap
	// PNG serializes the pixmap (honoring any attached alpha) to PNG bytes.
	PNG() ([]byte, error)
}

// Document is an open PDF document.
type Document interface {
	PageCount() int
	// XrefImages enumerates the xref image objects referenced from page
	// (1-based), in encounter order.
	XrefImages(page int) ([]XrefImage, error)
	// LayoutBlocks enumerates the image blocks painted on page, in paint
	// order, with their page-space bounding boxes.
	LayoutBlocks(page int) ([]LayoutBlock, error)
	// ExtractImage resolves xref to its encoded stream and metadata.
	ExtractImage(xref record.Xref) (ExtractedImage, error)
	// Pixmap constructs a decoded pixmap for xref.
	Pixmap(xref record.Xref) (Pixmap, error)
	Close() error
}

// Adapter opens PDF documents.
type Adapter interface {
	Open(path string) (Document, error)
}
