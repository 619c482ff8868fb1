package pagedriver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cardenuto-lab/pdffigures/config"
	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
	"github.com/cardenuto-lab/pdffigures/record"
)

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

func rgbSamples(w, h int, r, g, b byte) []byte {
	out := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		out[i*3], out[i*3+1], out[i*3+2] = r, g, b
	}
	return out
}

func TestPageWritesSingletonRecordDirectly(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	bbox := geometry.NewRect(10, 10, 110, 60)
	raw := []byte{1, 2, 3}

	doc := &fakeDoc{
		xrefs: map[int][]pdfadapter.XrefImage{
			1: {{Xref: 5, Width: 100, Height: 50, ColorspaceName: pdfadapter.ColorspaceRGB}},
		},
		blocks: map[int][]pdfadapter.LayoutBlock{
			1: {{BBox: bbox, RawImageBytes: raw, Width: 100, Height: 50}},
		},
		images: map[record.Xref]pdfadapter.ExtractedImage{
			5: {Ext: "jpg", Width: 100, Height: 50, Image: raw},
		},
		pixmap: map[record.Xref]pdfadapter.Pixmap{
			5: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 100, 50, rgbSamples(100, 50, 10, 20, 30)),
		},
	}

	counter := &Counter{}
	n, err := Page(doc, 1, config.Default().Extraction, dir, counter)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d files written, want 1", n)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files in output dir, want 1", len(entries))
	}
	want := "p-1-x0-10.000-y0-10.000-x1-110.000-y1-60.000-1.png"
	if entries[0].Name() != want {
		t.Fatalf("got filename %q, want %q", entries[0].Name(), want)
	}
}

func TestPageReturnsZeroForEmptyPage(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	doc := &fakeDoc{}
	counter := &Counter{}
	n, err := Page(doc, 1, config.Default().Extraction, dir, counter)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("got %d files written, want 0", n)
	}
}

func TestCounterNeverRepeats(t *testing.T) {
	t.Helper()
	c := &Counter{}
	seen := map[int]bool{}
	for i := 0; i < 10; i++ {
		n := c.Next()
		if seen[n] {
			t.Fatalf("counter value %d repeated", n)
		}
		seen[n] = true
	}
}

func TestFilenameForUsesSafeModeWhenNoBBox(t *testing.T) {
	t.Helper()
	r := record.Image{HasBBox: false}
	got := filenameFor(r, 3, 7)
	if got != "p-3-7.png" {
		t.Fatalf("got %q, want p-3-7.png", got)
	}
	if filepath.Ext(got) != ".png" {
		t.Fatalf("expected .png extension")
	}
}
