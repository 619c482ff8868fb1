// Package assemble implements the assembler: given an overlap cluster of
// two or more non-alpha image records, it paints each constituent into a
// composite canvas at the correct offset, producing one synthetic record
// per cluster (or flushing members standalone when merging is unsafe).
package assemble

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/record"
)

// maxDistance and distanceStep bound the widening-tolerance merge loop:
// CheckOverlap is retried at d=1.0, 1.5, ..., up to 5.0 before the loop
// gives up on the current head record.
const (
	initialDistance = 1.0
	maxDistance     = 5.0
	distanceStep    = 0.5
	// canvasOverlapGuardPx is the maximum pixel overlap in canvas space
	// two records may have before a merge is refused in favor of flushing
	// the record that would be overwritten.
	canvasOverlapGuardPx = 10
)

// Assemble folds a cluster of non-alpha records into as few output records
// as possible, returning one record per surviving figure (composites and
// any standalone flushes). The distance tolerance widens each time a full
// pass finds nothing to merge; at maxDistance the loop gives up on the
// current head record and flushes it standalone rather than looping
// forever — corrupt or pathological layouts must not hang extraction.
func Assemble(recs []record.Image) ([]record.Image, error) {
	work := make([]record.Image, len(recs))
	copy(work, recs)
	sort.Slice(work, func(i, j int) bool {
		a, b := work[i].BBox, work[j].BBox
		if a.X1 != b.X1 {
			return a.X1 < b.X1
		}
		if a.Y1 != b.Y1 {
			return a.Y1 < b.Y1
		}
		if a.X0 != b.X0 {
			return a.X0 < b.X0
		}
		return a.Y0 < b.Y0
	})

	var out []record.Image
	d := initialDistance

	for len(work) > 1 {
		a := work[0]
		rest := work[1:]

		matchIdx := -1
		for i, b := range rest {
			if geometry.CheckOverlap(a.BBox, b.BBox, d, geometry.DefaultOverlapDistanceBBox) {
				matchIdx = i
				break
			}
		}

		if matchIdx < 0 {
			if d >= maxDistance {
				out = append(out, a)
				work = rest
				d = initialDistance
				continue
			}
			d += distanceStep
			continue
		}

		b := rest[matchIdx]
		merged, flushed, err := merge(a, b)
		if err != nil {
			return nil, err
		}
		if flushed != nil {
			out = append(out, *flushed)
		}

		next := make([]record.Image, 0, len(rest))
		next = append(next, merged)
		for i, r := range rest {
			if i != matchIdx {
				next = append(next, r)
			}
		}
		work = next
		d = initialDistance
	}

	if len(work) == 1 {
		out = append(out, work[0])
	}

	return out, nil
}

// merge combines a and b into a synthetic composite record. If the guard
// against large canvas-space overlap trips, merge refuses to combine them:
// it returns the surviving record unmodified plus the flushed record the
// caller must write out standalone. Which of a and b survives is decided
// by overlapGuardTrips.
func merge(a, b record.Image) (merged record.Image, flushed *record.Image, err error) {
	sketch := a.BBox
	sketch.Include(b.BBox)

	realW, realH := estimateCanvasSize(a, b, sketch)
	if realW <= 0 || realH <= 0 {
		return record.Image{}, nil, fmt.Errorf("assemble: degenerate canvas size %dx%d", realW, realH)
	}

	offAX, offAY, offBX, offBY := placementOffsets(a, b, realW, realH)

	if survivorIsA, trip := overlapGuardTrips(a, b, offAX, offAY, offBX, offBY); trip {
		if survivorIsA {
			f := b
			return a, &f, nil
		}
		f := a
		return b, &f, nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, realW, realH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	pasteScaled(canvas, b, offBX, offBY)
	pasteScaled(canvas, a, offAX, offAY)

	return record.Image{
		BBox:    sketch,
		HasBBox: true,
		Width:   realW,
		Height:  realH,
		Pixels:  canvas,
	}, nil, nil
}

// estimateCanvasSize computes the merged canvas's pixel dimensions: each
// record independently estimates the canvas size its own resolution would
// imply for the union bbox, and the two estimates are averaged.
func estimateCanvasSize(a, b record.Image, sketch geometry.Rect) (int, int) {
	estW := func(r record.Image) float64 {
		if r.BBox.Width() == 0 {
			return 0
		}
		return sketch.Width() * float64(r.Width) / r.BBox.Width()
	}
	estH := func(r record.Image) float64 {
		if r.BBox.Height() == 0 {
			return 0
		}
		return sketch.Height() * float64(r.Height) / r.BBox.Height()
	}
	w := (estW(a) + estW(b)) / 2
	h := (estH(a) + estH(b)) / 2
	return int(math.Round(w)), int(math.Round(h))
}

// placementOffsets computes where within the realW x realH canvas each of
// a pair's top-left corners lands: whichever record has the smaller x0 is
// anchored at x=0, the other anchors flush against the right edge, clamped
// to 0 (symmetric rule for y using y0).
func placementOffsets(a, b record.Image, realW, realH int) (offAX, offAY, offBX, offBY int) {
	if a.BBox.X0 <= b.BBox.X0 {
		offAX, offBX = 0, maxInt(realW-b.Width, 0)
	} else {
		offBX, offAX = 0, maxInt(realW-a.Width, 0)
	}
	if a.BBox.Y0 <= b.BBox.Y0 {
		offAY, offBY = 0, maxInt(realH-b.Height, 0)
	} else {
		offBY, offAY = 0, maxInt(realH-a.Height, 0)
	}
	return
}

// overlapGuardTrips checks the canvas-overlap guard on whichever axis the
// two records are actually anchored against each other on: an axis where
// both share the same bbox origin (e.g. two tiles stacked side by side at
// the same y0) is not checked at all, since full overlap there is exactly
// what correct tiling looks like. It returns which record survives
// (true=a, false=b) and whether the guard tripped at all.
func overlapGuardTrips(a, b record.Image, offAX, offAY, offBX, offBY int) (survivorIsA, trip bool) {
	switch {
	case a.BBox.X0 < b.BBox.X0:
		if offAX+a.Width-offBX > canvasOverlapGuardPx {
			return true, true
		}
	case b.BBox.X0 < a.BBox.X0:
		if offBX+b.Width-offAX > canvasOverlapGuardPx {
			return false, true
		}
	}
	switch {
	case a.BBox.Y0 < b.BBox.Y0:
		if offAY+a.Height-offBY > canvasOverlapGuardPx {
			return true, true
		}
	case b.BBox.Y0 < a.BBox.Y0:
		if offBY+b.Height-offAY > canvasOverlapGuardPx {
			return false, true
		}
	}
	return false, false
}

// pasteScaled draws r's pixels at (offX, offY) on dst. The page driver
// rasterizes each cluster member's Pixels field via the PDF adapter before
// handing the cluster to Assemble, so every record reaching merge carries
// decoded pixels even though only synthetic composites keep them past
// write-out.
func pasteScaled(dst *image.RGBA, r record.Image, offX, offY int) {
	src := r.Pixels
	if src == nil {
		return
	}
	sb := src.Bounds()
	draw.Draw(dst, image.Rect(offX, offY, offX+sb.Dx(), offY+sb.Dy()), src, sb.Min, draw.Over)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
