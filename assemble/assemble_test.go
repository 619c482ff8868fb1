package assemble

import (
	"image"
	"image/color"
	"testing"

	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/record"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestAssembleMergesTwoAdjacentTiles(t *testing.T) {
	t.Helper()
	a := record.Image{
		BBox: geometry.NewRect(100, 50, 400, 250), HasBBox: true,
		Width: 600, Height: 400, Pixels: solidImage(600, 400, color.RGBA{255, 0, 0, 255}),
	}
	b := record.Image{
		BBox: geometry.NewRect(399.5, 50, 700, 250), HasBBox: true,
		Width: 600, Height: 400, Pixels: solidImage(600, 400, color.RGBA{0, 255, 0, 255}),
	}

	out, err := Assemble([]record.Image{a, b})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d output records, want 1", len(out))
	}
	got := out[0]
	if got.BBox.X0 != 100 || got.BBox.Y0 != 50 || got.BBox.X1 != 700 || got.BBox.Y1 != 250 {
		t.Fatalf("merged bbox = %+v, want [100,50,700,250]", got.BBox)
	}
	if got.Width < 1198 || got.Width > 1202 {
		t.Fatalf("merged width = %d, want ~1200", got.Width)
	}
	if got.Pixels == nil {
		t.Fatalf("expected merged record to carry composited pixels")
	}
}

func TestAssembleRefusesOverMergeOnLargeCanvasOverlap(t *testing.T) {
	t.Helper()
	a := record.Image{
		BBox: geometry.NewRect(0, 0, 500, 500), HasBBox: true,
		Width: 500, Height: 500, Pixels: solidImage(500, 500, color.RGBA{255, 0, 0, 255}),
	}
	b := record.Image{
		BBox: geometry.NewRect(480, 480, 520, 520), HasBBox: true,
		Width: 40, Height: 40, Pixels: solidImage(40, 40, color.RGBA{0, 0, 255, 255}),
	}

	out, err := Assemble([]record.Image{a, b})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d output records, want 2 (over-merge must be refused)", len(out))
	}
}

func TestAssembleSingleRecordPassesThroughUnchanged(t *testing.T) {
	t.Helper()
	a := record.Image{BBox: geometry.NewRect(0, 0, 10, 10), HasBBox: true, Width: 10, Height: 10}
	out, err := Assemble([]record.Image{a})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d output records, want 1", len(out))
	}
}
