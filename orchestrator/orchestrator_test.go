package orchestrator

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardenuto-lab/pdffigures/config"
	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
	"github.com/cardenuto-lab/pdffigures/record"
)

type fakeDoc struct {
	pageCount int
	xrefs     map[int][]pdfadapter.XrefImage
	blocks    map[int][]pdfadapter.LayoutBlock
	images    map[record.Xref]pdfadapter.ExtractedImage
	pixmap    map[record.Xref]pdfadapter.Pixmap
	delay     time.Duration
	closes    int
}

func (f *fakeDoc) PageCount() int { return f.pageCount }

func (f *fakeDoc) XrefImages(page int) ([]pdfadapter.XrefImage, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
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

func (f *fakeDoc) Close() error {
	f.closes++
	return nil
}

type fakeAdapter struct {
	doc *fakeDoc
}

func (a *fakeAdapter) Open(path string) (pdfadapter.Document, error) {
	return a.doc, nil
}

func rgbSamples(w, h int, r, g, b byte) []byte {
	out := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		out[i*3], out[i*3+1], out[i*3+2] = r, g, b
	}
	return out
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDocumentNormalModeWritesSingletonRecord(t *testing.T) {
	t.Helper()
	outRoot := t.TempDir()
	bbox := geometry.NewRect(10, 10, 110, 60)
	raw := []byte{1, 2, 3}
	samples := rgbSamples(100, 50, 10, 20, 30)
	samples[0] = 200

	doc := &fakeDoc{
		pageCount: 1,
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
			5: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 100, 50, samples),
		},
	}

	err := Document(&fakeAdapter{doc: doc}, "report.pdf", outRoot, ModeNormal, config.Default(), silentLogger())
	if err != nil {
		t.Fatalf("Document returned error: %v", err)
	}

	outDir := filepath.Join(outRoot, "report")
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("reading output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}
	want := "p-1-x0-10.000-y0-10.000-x1-110.000-y1-60.000-1.png"
	if entries[0].Name() != want {
		t.Fatalf("got filename %q, want %q", entries[0].Name(), want)
	}
	if doc.closes == 0 {
		t.Fatalf("document was never closed")
	}
}

func TestDocumentTimeoutFallsBackToSafeMode(t *testing.T) {
	t.Helper()
	outRoot := t.TempDir()
	samples1 := rgbSamples(20, 20, 1, 2, 3)
	samples1[0] = 200
	samples2 := rgbSamples(20, 20, 4, 5, 6)
	samples2[0] = 200

	doc := &fakeDoc{
		pageCount: 2,
		delay:     50 * time.Millisecond,
		xrefs: map[int][]pdfadapter.XrefImage{
			1: {{Xref: 1, Width: 20, Height: 20, ColorspaceName: pdfadapter.ColorspaceRGB}},
			2: {{Xref: 2, Width: 20, Height: 20, ColorspaceName: pdfadapter.ColorspaceRGB}},
		},
		blocks: map[int][]pdfadapter.LayoutBlock{},
		images: map[record.Xref]pdfadapter.ExtractedImage{
			1: {Ext: "jpg", Width: 20, Height: 20},
			2: {Ext: "jpg", Width: 20, Height: 20},
		},
		pixmap: map[record.Xref]pdfadapter.Pixmap{
			1: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 20, 20, samples1),
			2: pdfadapter.NewPixmap(pdfadapter.ColorspaceRGB, 20, 20, samples2),
		},
	}

	cfg := config.Default()
	cfg.Extraction.Timeout = 10 * time.Millisecond

	err := Document(&fakeAdapter{doc: doc}, "slow.pdf", outRoot, ModeNormal, cfg, silentLogger())
	if err != nil {
		t.Fatalf("Document returned error: %v", err)
	}

	outDir := filepath.Join(outRoot, "slow")
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("reading output dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".png" {
			continue
		}
		if m, _ := filepath.Match("p-?-?.png", e.Name()); !m {
			t.Fatalf("got safe-mode-shaped filename check failed for %q", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Fatalf("got %d safe-mode files, want 2", len(entries))
	}
}

func TestDocumentUnsafeModeWritesLayoutBlocksDirectly(t *testing.T) {
	t.Helper()
	outRoot := t.TempDir()
	bbox := geometry.NewRect(0, 0, 20, 20)

	doc := &fakeDoc{
		pageCount: 1,
		blocks: map[int][]pdfadapter.LayoutBlock{
			1: {{BBox: bbox, RawImageBytes: rgbSamples(20, 20, 7, 8, 9), Width: 20, Height: 20}},
		},
	}

	err := Document(&fakeAdapter{doc: doc}, "raw.pdf", outRoot, ModeUnsafe, config.Default(), silentLogger())
	if err != nil {
		t.Fatalf("Document returned error: %v", err)
	}

	outDir := filepath.Join(outRoot, "raw")
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("reading output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}
	want := "p-1-x0-0.000-y0-0.000-x1-20.000-y1-20.000-1.png"
	if entries[0].Name() != want {
		t.Fatalf("got filename %q, want %q", entries[0].Name(), want)
	}
}
