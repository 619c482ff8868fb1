package correlate

import (
	"testing"

	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
	"github.com/cardenuto-lab/pdffigures/record"
)

// fakeDoc is a minimal in-memory pdfadapter.Document for exercising the
// correlator without a real PDF library.
type fakeDoc struct {
	xrefs  map[int][]pdfadapter.XrefImage
	blocks map[int][]pdfadapter.LayoutBlock
	images map[record.Xref]pdfadapter.ExtractedImage
	pixmap map[record.Xref]pdfadapter.Pixmap
}

func (f *fakeDoc) PageCount() int { return 1 }
func (f *fakeDoc) XrefImages(page int) ([]pdfadapter.XrefImage, error) {
	return f.xrefs[page], nil
}
func (f *fakeDoc) LayoutBlocks(page int) ([]pdfadapter.LayoutBlock, error) {
	return f.blocks[page], nil
}
func (f *fakeDoc) ExtractImage(xref record.Xref) (pdfadapter.ExtractedImage, error) {
	return f.images[xref], nil
}
func (f *fakeDoc) Pixmap(xref record.Xref) (pdfadapter.Pixmap, error) {
	return f.pixmap[xref], nil
}
func (f *fakeDoc) Close() error { return nil }

func TestPageMatchesXrefToLayoutBlockByBytes(t *testing.T) {
	t.Helper()
	bbox := geometry.NewRect(100, 50, 400, 250)
	samples := make([]byte, 300*200*3)
	samples[0] = 7

	doc := &fakeDoc{
		xrefs: map[int][]pdfadapter.XrefImage{
			1: {{Xref: 10, Width: 300, Height: 200, ColorspaceName: pdfadapter.ColorspaceRGB, FilterName: "DCTDecode"}},
		},
		blocks: map[int][]pdfadapter.LayoutBlock{
			1: {{BBox: bbox, RawImageBytes: samples, Width: 300, Height: 200}},
		},
		images: map[record.Xref]pdfadapter.ExtractedImage{
			10: {Ext: "jpg", Width: 300, Height: 200, Image: []byte{0xff, 0xd8, 0xff}},
		},
		pixmap: map[record.Xref]pdfadapter.Pixmap{
			10: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 300, 200, samples),
		},
	}

	recs, err := Page(doc, 1, true)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if !recs[0].HasBBox || recs[0].BBox != bbox {
		t.Fatalf("record did not get the matched bbox: %+v", recs[0])
	}
}

func TestPageSkipsUnmatchedXrefWithNullBBox(t *testing.T) {
	t.Helper()
	doc := &fakeDoc{
		xrefs: map[int][]pdfadapter.XrefImage{
			1: {{Xref: 10, Width: 300, Height: 200, ColorspaceName: pdfadapter.ColorspaceRGB}},
		},
		blocks: map[int][]pdfadapter.LayoutBlock{
			1: {{RawImageBytes: []byte{9, 9, 9}, Width: 300, Height: 200}},
		},
		images: map[record.Xref]pdfadapter.ExtractedImage{
			10: {Ext: "jpg", Width: 300, Height: 200, Image: []byte{1, 2, 3}},
		},
		pixmap: map[record.Xref]pdfadapter.Pixmap{
			10: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 300, 200, make([]byte, 300*200*3)),
		},
	}

	recs, err := Page(doc, 1, false)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("got %d records, want 0 since byte-matching failed and fallback is disabled", len(recs))
	}
}

func TestPageRecoversRepeatedBlitOfSameXref(t *testing.T) {
	t.Helper()
	bboxA := geometry.NewRect(0, 0, 50, 50)
	bboxB := geometry.NewRect(100, 100, 150, 150)
	samples := make([]byte, 50*50*3)
	samples[0] = 7

	doc := &fakeDoc{
		xrefs: map[int][]pdfadapter.XrefImage{
			1: {{Xref: 10, Width: 50, Height: 50, ColorspaceName: pdfadapter.ColorspaceRGB}},
		},
		blocks: map[int][]pdfadapter.LayoutBlock{
			1: {
				{BBox: bboxA, RawImageBytes: samples, Width: 50, Height: 50},
				{BBox: bboxB, RawImageBytes: samples, Width: 50, Height: 50},
			},
		},
		images: map[record.Xref]pdfadapter.ExtractedImage{
			10: {Ext: "jpg", Width: 50, Height: 50, Image: []byte{0xff, 0xd8, 0xff}},
		},
		pixmap: map[record.Xref]pdfadapter.Pixmap{
			10: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 50, 50, samples),
		},
	}

	recs, err := Page(doc, 1, true)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (one per painted blit of the repeated xref)", len(recs))
	}
	if !recs[0].HasBBox || recs[0].BBox != bboxA {
		t.Fatalf("first record got bbox %+v, want %+v", recs[0].BBox, bboxA)
	}
	if recs[0].AltColorspace != "" {
		t.Fatalf("first sighting should keep the original alt-colorspace, got %q", recs[0].AltColorspace)
	}
	if !recs[1].HasBBox || recs[1].BBox != bboxB {
		t.Fatalf("second record got bbox %+v, want %+v", recs[1].BBox, bboxB)
	}
	if recs[1].AltColorspace != "Isolate0" {
		t.Fatalf("second sighting should be tagged Isolate0, got %q", recs[1].AltColorspace)
	}
}

func TestPagePositionalFallbackPairsWhenNothingMatched(t *testing.T) {
	t.Helper()
	bbox := geometry.NewRect(0, 0, 50, 50)
	doc := &fakeDoc{
		xrefs: map[int][]pdfadapter.XrefImage{
			1: {{Xref: 10, Width: 50, Height: 50, ColorspaceName: pdfadapter.ColorspaceRGB}},
		},
		blocks: map[int][]pdfadapter.LayoutBlock{
			1: {{BBox: bbox, RawImageBytes: []byte{9, 9, 9}, Width: 50, Height: 50}},
		},
		images: map[record.Xref]pdfadapter.ExtractedImage{
			10: {Ext: "jpg", Width: 50, Height: 50, Image: []byte{1, 2, 3}},
		},
		pixmap: map[record.Xref]pdfadapter.Pixmap{
			10: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 50, 50, make([]byte, 50*50*3)),
		},
	}

	recs, err := Page(doc, 1, true)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if len(recs) != 1 || !recs[0].HasBBox || recs[0].BBox != bbox {
		t.Fatalf("expected positional fallback to pair the lone xref with the lone block, got %+v", recs)
	}
}
