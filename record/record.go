// Package record defines ImageRecord, the central per-image entity that
// flows from the page correlator through the clusterer and assembler to
// the pixel writer.
package record

import (
	"image"

	"github.com/cardenuto-lab/pdffigures/geometry"
)

// Colorspace is the component count reported by the PDF adapter.
type Colorspace int

const (
	ColorspaceUnknown Colorspace = 0
	ColorspaceGray    Colorspace = 1
	ColorspaceRGB     Colorspace = 3
	ColorspaceCMYK    Colorspace = 4
)

// Xref identifies an image object inside a source PDF. A zero value means
// "no xref" — either the capability wasn't resolved or this is a synthetic
// record produced by the Assembler.
type Xref int

// Image is the central entity of the extraction pipeline: per-image
// metadata plus, for synthetic composites, decoded pixels.
//
// Invariant: a record that reaches the pixel writer carries either a
// non-zero Xref or a non-nil Pixels buffer, never neither.
type Image struct {
	// Xref is the opaque handle into the source document, or 0 for
	// synthetic records built by the Assembler.
	Xref Xref
	// Ext is the source encoding tag (e.g. "png", "jpx", "flate"); informational.
	Ext string
	// Filter is the PDF stream filter name if extractable; used only as a
	// clustering mismatch signal, never for decoding decisions.
	Filter string
	// Colorspace is the component count (1=gray, 3=RGB, 4=CMYK).
	Colorspace Colorspace
	// AltColorspace is a secondary colorspace tag (e.g. "Separation",
	// "DeviceN", "Isolate<n>"); string-compared for equality only.
	AltColorspace string
	// SMask is non-zero when this record has a stencil (alpha) mask; its
	// value is the xref of the mask image.
	SMask Xref
	// Width, Height are the pixel dimensions reported by the decoder.
	Width, Height int
	// BBox is the page-space rectangle this object paints into. Absent
	// (HasBBox == false) when correlation failed to place it.
	BBox    geometry.Rect
	HasBBox bool
	// Pixels holds a decoded bitmap; populated for synthetic composites
	// built by the Assembler, and on cluster members the page driver
	// rasterizes before handing them to the Assembler.
	Pixels image.Image
}

// HasAlpha reports whether the record carries a stencil mask.
func (r Image) HasAlpha() bool { return r.SMask != 0 }

// IsValidSize reports whether both dimensions meet the minimum.
func (r Image) IsValidSize(minWidth, minHeight int) bool {
	return r.Width >= minWidth && r.Height >= minHeight
}

// Copy returns a duplicate of r with Xref cleared, so derived records
// never re-resolve pixels through the source document.
func (r Image) Copy() Image {
	c := r
	c.Xref = 0
	return c
}
