// Package geometry provides the rectangle primitives and overlap heuristics
// shared by the correlator, clusterer and assembler. Coordinates are in PDF
// user space; origin convention follows whatever the pdfadapter reports and
// must stay consistent across all records on a page.
package geometry

import "math"

// Rect is an axis-aligned rectangle with X0<=X1 and Y0<=Y1.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect builds a Rect, swapping coordinates as needed so X0<=X1, Y0<=Y1.
func NewRect(x0, y0, x1, y1 float64) Rect {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Width returns X1-X0.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns Y1-Y0.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Contains reports whether other lies entirely within r.
func (r Rect) Contains(other Rect) bool {
	return r.X0 <= other.X0 && r.Y0 <= other.Y0 && r.X1 >= other.X1 && r.Y1 >= other.Y1
}

// Point is a 2D point in the same coordinate space as Rect.
type Point struct {
	X, Y float64
}

// DistanceToPoint returns the Euclidean distance between p and q.
func (p Point) DistanceToPoint(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// DistanceToRect returns the distance from p to the nearest point of r,
// 0 if p lies inside r.
func (p Point) DistanceToRect(r Rect) float64 {
	dx := 0.0
	if p.X < r.X0 {
		dx = r.X0 - p.X
	} else if p.X > r.X1 {
		dx = p.X - r.X1
	}
	dy := 0.0
	if p.Y < r.Y0 {
		dy = r.Y0 - p.Y
	} else if p.Y > r.Y1 {
		dy = p.Y - r.Y1
	}
	return math.Sqrt(dx*dx + dy*dy)
}

// corners returns the rectangle's four corners in a fixed order:
// bottom-left, bottom-right, top-left, top-right (following the PDF
// adapter's coordinate convention, whichever axis direction it uses).
func (r Rect) corners() (p0, p1, p2, p3 Point) {
	p0 = Point{r.X0, r.Y0}
	p1 = Point{r.X1, r.Y0}
	p2 = Point{r.X0, r.Y1}
	p3 = Point{r.X1, r.Y1}
	return
}

// Include grows r in place to be the minimum bounding rectangle of r and
// other.
func (r *Rect) Include(other Rect) {
	r.X0 = math.Min(r.X0, other.X0)
	r.Y0 = math.Min(r.Y0, other.Y0)
	r.X1 = math.Max(r.X1, other.X1)
	r.Y1 = math.Max(r.Y1, other.Y1)
}

// SameLocation reports whether a and b's four corners coincide exactly.
func SameLocation(a, b Rect) bool {
	p0, p1, p2, p3 := a.corners()
	q0, q1, q2, q3 := b.corners()
	return p0.DistanceToPoint(q0) == 0 && p1.DistanceToPoint(q1) == 0 &&
		p2.DistanceToPoint(q2) == 0 && p3.DistanceToPoint(q3) == 0
}

const (
	// DefaultOverlapDistance is the default edge-adjacency tolerance for CheckOverlap.
	DefaultOverlapDistance = 1.0
	// DefaultOverlapDistanceBBox is the default corner-to-bbox tolerance for CheckOverlap.
	DefaultOverlapDistanceBBox = 0.001
)

// CheckOverlap reports whether a and b should be treated as parts of the
// same figure. It is not strict geometric intersection: it deliberately
// admits near-adjacency so that figures whose pieces abut (tiled scans,
// base+overlay pairs) are recognized as one figure.
//
//  1. Exact same-location rectangles are NOT an overlap (duplicates are
//     handled by the post-processor, not by merging).
//  2. Containment is always an overlap.
//  3. Each of the four edge-adjacency patterns (right-of, left-of, above,
//     below) counts as an overlap when both relevant corner-pair distances
//     are below d.
//  4. A corner of a within d_bbox of b, paired with a matching corner of a
//     also within d_bbox of the corresponding corner of b, counts as an
//     overlap. This is the asymmetric heuristic that distinguishes stacked
//     tiles of one figure from unrelated neighboring graphics.
func CheckOverlap(a, b Rect, d, dBbox float64) bool {
	if SameLocation(a, b) {
		return false
	}
	if a.Contains(b) || b.Contains(a) {
		return true
	}

	p0, p1, p2, p3 := a.corners()
	q0, q1, q2, q3 := b.corners()

	// a is to the left of b.
	if p1.DistanceToPoint(q0) < d && p3.DistanceToPoint(q2) < d {
		return true
	}
	// a is to the right of b.
	if p0.DistanceToPoint(q1) < d && p2.DistanceToPoint(q3) < d {
		return true
	}
	// a is above b.
	if p0.DistanceToPoint(q2) < d && p1.DistanceToPoint(q3) < d {
		return true
	}
	// a is below b.
	if p2.DistanceToPoint(q0) < d && p3.DistanceToPoint(q1) < d {
		return true
	}

	if p1.DistanceToRect(b) < dBbox && p3.DistanceToRect(b) < dBbox &&
		(p1.DistanceToPoint(q0) < dBbox || p3.DistanceToPoint(q2) < dBbox) {
		return true
	}
	if p0.DistanceToRect(b) < dBbox && p2.DistanceToRect(b) < dBbox &&
		(p0.DistanceToPoint(q1) < dBbox || p2.DistanceToPoint(q3) < dBbox) {
		return true
	}
	if p0.DistanceToRect(b) < dBbox && p1.DistanceToRect(b) < dBbox &&
		(p0.DistanceToPoint(q2) < dBbox || p1.DistanceToPoint(q3) < dBbox) {
		return true
	}
	if p2.DistanceToRect(b) < dBbox && p3.DistanceToRect(b) < dBbox &&
		(p2.DistanceToPoint(q0) < dBbox || p3.DistanceToPoint(q1) < dBbox) {
		return true
	}

	return false
}
