package pdfadapter

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"

	"github.com/cardenuto-lab/pdffigures/record"
)

// PDFCPUAdapter opens documents through pdfcpu's top-level extraction
// entry points — the same ones backing `pdfcpu extract -mode image` and
// `-mode content` — into a scratch directory, then indexes the results.
// This keeps the dependency surface to pdfcpu's stable, CLI-facing API
// rather than its internal xref/object model, which pdfcpu does not
// document as a surface for third-party callers to walk directly.
//
// Known limitation: pdfcpu's file-based image extraction does not report
// which extracted image is another image's soft mask, so every xref this
// adapter reports has SMaskXref == 0, and component F's matchAlphaXref is
// never reached through it. The Gray+alpha row of the pixel writer's
// decision table is exercised by synthetic pixmaps in the pixelwriter
// tests; a real alpha-aware adapter would need pdfcpu's object-level
// dictionary access to recover the /SMask indirect reference.
type PDFCPUAdapter struct{}

func (PDFCPUAdapter) Open(path string) (Document, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pdfadapter: reading page count for %s", path)
	}

	scratch, err := os.MkdirTemp("", "pdffigures-")
	if err != nil {
		return nil, errors.Wrap(err, "pdfadapter: creating scratch directory")
	}

	if err := api.ExtractImagesFile(path, scratch, nil, nil); err != nil {
		os.RemoveAll(scratch)
		return nil, errors.Wrapf(err, "pdfadapter: extracting images from %s", path)
	}
	if err := api.ExtractContentFile(path, scratch, nil, nil); err != nil {
		os.RemoveAll(scratch)
		return nil, errors.Wrapf(err, "pdfadapter: extracting content streams from %s", path)
	}

	doc := &pdfcpuDocument{path: path, pageCount: n, scratch: scratch}
	if err := doc.index(); err != nil {
		os.RemoveAll(scratch)
		return nil, err
	}
	return doc, nil
}

type pdfcpuDocument struct {
	path      string
	pageCount int
	scratch   string

	imagesByPage    map[int][]XrefImage
	imageData       map[record.Xref][]byte
	imageRawSamples map[record.Xref][]byte
	imageExt        map[record.Xref]string
	contentByPage   map[int][]byte
}

// pdfcpu's image-extraction filename convention embeds the owning page
// number and object number: <basename>_<page>_<objNr>.<ext>.
var imageFileRe = regexp.MustCompile(`_(\d+)_(\d+)\.([a-zA-Z0-9]+)$`)

// pdfcpu's content-extraction filename convention embeds the page number,
// e.g. <basename>_Content_page_<page>.txt.
var contentFileRe = regexp.MustCompile(`[Cc]ontent.*?(\d+)[^0-9]*$`)

func (d *pdfcpuDocument) index() error {
	entries, err := os.ReadDir(d.scratch)
	if err != nil {
		return errors.Wrapf(err, "pdfadapter: listing scratch directory for %s", d.path)
	}

	d.imagesByPage = map[int][]XrefImage{}
	d.imageData = map[record.Xref][]byte{}
	d.imageRawSamples = map[record.Xref][]byte{}
	d.imageExt = map[record.Xref]string{}
	d.contentByPage = map[int][]byte{}

	var imageNames, contentNames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case imageFileRe.MatchString(name):
			imageNames = append(imageNames, name)
		case contentFileRe.MatchString(name):
			contentNames = append(contentNames, name)
		}
	}
	// Sort so xrefs within a page are indexed in a stable, reproducible
	// order; walkContentStream's resolver falls back to this order for any
	// resource name it hasn't already assigned to a specific xref.
	sort.Strings(imageNames)
	sort.Strings(contentNames)

	for _, name := range imageNames {
		m := imageFileRe.FindStringSubmatch(name)
		page, _ := strconv.Atoi(m[1])
		objNr, _ := strconv.Atoi(m[2])
		ext := m[3]

		data, err := os.ReadFile(filepath.Join(d.scratch, name))
		if err != nil {
			continue
		}
		img, w, h, csName, err := decodeImage(data)
		if err != nil {
			continue
		}

		xref := record.Xref(objNr)
		d.imageData[xref] = data
		d.imageRawSamples[xref] = pixmapFromImage(img).Samples()
		d.imageExt[xref] = ext
		d.imagesByPage[page] = append(d.imagesByPage[page], XrefImage{
			Xref:             xref,
			Width:            w,
			Height:           h,
			BitsPerComponent: 8,
			ColorspaceName:   csName,
			FilterName:       ext,
		})
	}

	for _, name := range contentNames {
		m := contentFileRe.FindStringSubmatch(name)
		page, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.scratch, name))
		if err != nil {
			continue
		}
		d.contentByPage[page] = data
	}

	return nil
}

func (d *pdfcpuDocument) PageCount() int { return d.pageCount }

func (d *pdfcpuDocument) XrefImages(page int) ([]XrefImage, error) {
	return d.imagesByPage[page], nil
}

// LayoutBlocks walks the page's content stream, resolving each Do operand
// against this page's xref images in extraction order (the same order
// XrefImages reports them in), since pdfcpu's file-based extraction gives
// no resource-name-to-object mapping to resolve against directly. The
// resolver still sees each Do operand's resource name, though, and
// remembers which xref it first assigned to a given name, so a repeated
// Do of the same resource name (a repeated blit of one image) is paired
// with the same xref's bytes again instead of silently consuming the
// next, unrelated xref in the queue. That keeps a page with N distinct
// images and M>N Do calls correct: the (N+1)th call reuses an
// already-assigned name rather than running off the end of the queue.
func (d *pdfcpuDocument) LayoutBlocks(page int) ([]LayoutBlock, error) {
	content, ok := d.contentByPage[page]
	if !ok {
		return nil, nil
	}
	resolver := &positionalXObjectResolver{queue: d.imagesByPage[page], data: d.imageRawSamples, assigned: map[string]int{}}
	return walkContentStream(content, resolver), nil
}

func (d *pdfcpuDocument) ExtractImage(xref record.Xref) (ExtractedImage, error) {
	data, ok := d.imageData[xref]
	if !ok {
		return ExtractedImage{}, fmt.Errorf("pdfadapter: no extracted image for xref %d", xref)
	}
	_, w, h, csName, err := decodeImage(data)
	if err != nil {
		return ExtractedImage{}, errors.Wrapf(err, "pdfadapter: decoding xref %d", xref)
	}
	return ExtractedImage{
		Ext:        d.imageExt[xref],
		Colorspace: componentsPerPixel(csName),
		Width:      w,
		Height:     h,
		Image:      data,
	}, nil
}

func (d *pdfcpuDocument) Pixmap(xref record.Xref) (Pixmap, error) {
	data, ok := d.imageData[xref]
	if !ok {
		return nil, fmt.Errorf("pdfadapter: no pixmap for xref %d", xref)
	}
	img, _, _, _, err := decodeImage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "pdfadapter: decoding xref %d for pixmap", xref)
	}
	return pixmapFromImage(img), nil
}

func (d *pdfcpuDocument) Close() error {
	return os.RemoveAll(d.scratch)
}

// positionalXObjectResolver hands out this page's xref images in order, one
// per distinct Do resource name, since pdfcpu's file-extraction surface
// doesn't expose the resource dictionary's name-to-object mapping directly.
// It memoizes name -> xref assignments so a resource name seen again (a
// repeated blit of the same image) gets the same xref's bytes again,
// instead of silently advancing into the next, unrelated xref in the
// queue. See the LayoutBlocks doc comment for the full rationale.
type positionalXObjectResolver struct {
	queue    []XrefImage
	data     map[record.Xref][]byte
	assigned map[string]int
	next     int
}

func (r *positionalXObjectResolver) ResolveXObjectImage(name string) (data []byte, width, height int, ok bool) {
	idx, seen := r.assigned[name]
	if !seen {
		if r.next >= len(r.queue) {
			return nil, 0, 0, false
		}
		idx = r.next
		r.assigned[name] = idx
		r.next++
	}
	xi := r.queue[idx]
	return r.data[xi.Xref], xi.Width, xi.Height, true
}

// decodeImage decodes data fully (not just its header) so the colorspace
// can be read off the decoder's concrete image type rather than compared
// against stdlib color.Model values, which are function values and
// therefore not safely comparable. It returns the decoded image itself so
// callers that need raw interleaved samples (pixmapFromImage) don't have
// to decode the same bytes twice.
func decodeImage(data []byte) (img image.Image, width, height int, csName string, err error) {
	img, _, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, "", err
	}
	b := img.Bounds()
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		csName = ColorspaceGray
	case *image.CMYK:
		csName = ColorspaceCMYK
	default:
		csName = ColorspaceRGB
	}
	return img, b.Dx(), b.Dy(), csName, nil
}

// pixmapFromImage converts a decoded stdlib image into our interleaved
// sample representation, looping explicitly rather than copying Pix
// slices directly since a decoded image's Stride is not guaranteed to
// equal width*componentsPerPixel for every source.
func pixmapFromImage(img image.Image) Pixmap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		out := make([]byte, w*h)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out[i] = src.GrayAt(x, y).Y
				i++
			}
		}
		return NewPixmap(ColorspaceGray, w, h, out)
	case *image.CMYK:
		out := make([]byte, w*h*4)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.CMYKAt(x, y)
				out[i], out[i+1], out[i+2], out[i+3] = c.C, c.M, c.Y, c.K
				i += 4
			}
		}
		return NewPixmap(ColorspaceCMYK, w, h, out)
	default:
		out := make([]byte, w*h*3)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				out[i], out[i+1], out[i+2] = byte(r>>8), byte(g>>8), byte(bl>>8)
				i += 3
			}
		}
		return NewPixmap(ColorspaceRGB, w, h, out)
	}
}
