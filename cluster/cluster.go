// Package cluster computes equivalence classes of spatially overlapping
// image records on a page: the set of clusters the assembler will later
// fold into composite figures.
package cluster

import (
	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/record"
)

// Cluster is a set of indices into the input record slice, all believed to
// belong to the same figure.
type Cluster []int

// Overlap reports whether records a and b should be considered part of
// the same figure candidate. It is stricter than raw
// geometry: alpha images, filter mismatches and colorspace mismatches
// never merge regardless of geometric proximity, since merging a
// grayscale inset into a color photo (or a mask into its base, or two
// unrelated JPEG tiles into an abutting vector drawing) would destroy
// information the pipeline has no way to recover.
func Overlap(a, b record.Image, d, dBbox float64) bool {
	if !a.HasBBox || !b.HasBBox {
		return false
	}
	if a.HasAlpha() || b.HasAlpha() {
		return false
	}
	if a.Filter != b.Filter {
		return false
	}
	if a.Colorspace != b.Colorspace {
		return false
	}
	if a.AltColorspace != b.AltColorspace {
		return false
	}
	return geometry.CheckOverlap(a.BBox, b.BBox, d, dBbox)
}

// Clusters partitions recs into equivalence classes. Records with no bbox
// pass through as singleton clusters, unmerged. Fixed-point termination is
// guaranteed: each union-by-intersection or union-by-bounding-box pass
// that performs a merge strictly decreases the number of clusters, and the
// outer loop stops the first pass that performs none.
func Clusters(recs []record.Image, d, dBbox float64) []Cluster {
	n := len(recs)
	sets := make([]Cluster, n)
	for i := range recs {
		sets[i] = Cluster{i}
	}

	for i := 0; i < n; i++ {
		if !recs[i].HasBBox {
			continue
		}
		for j := i + 1; j < n; j++ {
			if Overlap(recs[i], recs[j], d, dBbox) {
				sets[i] = append(sets[i], j)
			}
		}
	}

	clusters := seedsToClusters(sets, n)

	for {
		merged := unionByIntersection(clusters)
		merged = unionByBoundingBox(recs, merged, d, dBbox)
		if len(merged) == len(clusters) {
			clusters = merged
			break
		}
		clusters = merged
	}

	return clusters
}

// seedsToClusters turns the per-index adjacency seeds (sets[i] = {i} plus
// anything i overlaps) into a starting partition, merging any seeds that
// share a member.
func seedsToClusters(sets []Cluster, n int) []Cluster {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i, s := range sets {
		for _, j := range s {
			union(i, j)
		}
	}

	byRoot := map[int]Cluster{}
	for i := 0; i < n; i++ {
		r := find(i)
		byRoot[r] = append(byRoot[r], i)
	}

	out := make([]Cluster, 0, len(byRoot))
	for _, c := range byRoot {
		out = append(out, c)
	}
	return out
}

// unionByIntersection repeatedly merges any two clusters that share an
// index, until a full sweep finds nothing left to merge.
func unionByIntersection(clusters []Cluster) []Cluster {
	for {
		merged := false
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if intersects(clusters[i], clusters[j]) {
					clusters[i] = union(clusters[i], clusters[j])
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			return clusters
		}
	}
}

// unionByBoundingBox merges clusters whose union bounding rectangles
// satisfy CheckOverlap, unless the two clusters already contain records
// whose bboxes coincide exactly (a signal of legitimate separate figures
// stacked at the same location, not one figure split in two).
func unionByBoundingBox(recs []record.Image, clusters []Cluster, d, dBbox float64) []Cluster {
	for {
		merged := false
		for i := 0; i < len(clusters); i++ {
			bi, oki := boundingBox(recs, clusters[i])
			if !oki {
				continue
			}
			for j := i + 1; j < len(clusters); j++ {
				bj, okj := boundingBox(recs, clusters[j])
				if !okj {
					continue
				}
				if sameLocationBBoxUsed(recs, clusters[i], clusters[j]) {
					continue
				}
				if geometry.CheckOverlap(bi, bj, d, dBbox) {
					clusters[i] = union(clusters[i], clusters[j])
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			return clusters
		}
	}
}

// sameLocationBBoxUsed reports whether any record in a and any record in b
// share the exact same four-corner location, which marks them as distinct
// figures stacked at one spot rather than fragments of the same figure.
func sameLocationBBoxUsed(recs []record.Image, a, b Cluster) bool {
	for _, i := range a {
		if !recs[i].HasBBox {
			continue
		}
		for _, j := range b {
			if !recs[j].HasBBox {
				continue
			}
			if geometry.SameLocation(recs[i].BBox, recs[j].BBox) {
				return true
			}
		}
	}
	return false
}

func boundingBox(recs []record.Image, c Cluster) (geometry.Rect, bool) {
	var box geometry.Rect
	found := false
	for _, i := range c {
		if !recs[i].HasBBox {
			continue
		}
		if !found {
			box = recs[i].BBox
			found = true
			continue
		}
		box.Include(recs[i].BBox)
	}
	return box, found
}

func intersects(a, b Cluster) bool {
	set := make(map[int]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func union(a, b Cluster) Cluster {
	set := make(map[int]struct{}, len(a)+len(b))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make(Cluster, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}
