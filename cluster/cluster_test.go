package cluster

import (
	"testing"

	"github.com/cardenuto-lab/pdffigures/geometry"
	"github.com/cardenuto-lab/pdffigures/record"
)

func rectRecord(x0, y0, x1, y1 float64) record.Image {
	return record.Image{
		Colorspace: record.ColorspaceRGB,
		Filter:     "DCTDecode",
		BBox:       geometry.NewRect(x0, y0, x1, y1),
		HasBBox:    true,
	}
}

func TestClusterMergesAdjacentTiles(t *testing.T) {
	t.Helper()
	recs := []record.Image{
		rectRecord(100, 50, 400, 250),
		rectRecord(399.5, 50, 700, 250),
	}
	clusters := Clusters(recs, geometry.DefaultOverlapDistance, geometry.DefaultOverlapDistanceBBox)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	if len(clusters[0]) != 2 {
		t.Fatalf("got cluster of size %d, want 2", len(clusters[0]))
	}
}

func TestClusterKeepsDistantRectsSeparate(t *testing.T) {
	t.Helper()
	recs := []record.Image{
		rectRecord(0, 0, 10, 10),
		rectRecord(1000, 1000, 1010, 1010),
	}
	clusters := Clusters(recs, geometry.DefaultOverlapDistance, geometry.DefaultOverlapDistanceBBox)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
}

func TestClusterNeverGroupsAlphaRecords(t *testing.T) {
	t.Helper()
	a := rectRecord(0, 0, 100, 100)
	b := rectRecord(50, 50, 150, 150)
	b.SMask = 7
	clusters := Clusters([]record.Image{a, b}, geometry.DefaultOverlapDistance, geometry.DefaultOverlapDistanceBBox)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2 (alpha record must not merge)", len(clusters))
	}
}

func TestClusterSeparatesMismatchedColorspaces(t *testing.T) {
	t.Helper()
	a := rectRecord(0, 0, 100, 100)
	b := rectRecord(0, 0, 100, 100)
	b.Colorspace = record.ColorspaceGray
	b.BBox = geometry.NewRect(50, 50, 150, 150)
	clusters := Clusters([]record.Image{a, b}, geometry.DefaultOverlapDistance, geometry.DefaultOverlapDistanceBBox)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2 (colorspace mismatch must not merge)", len(clusters))
	}
}

func TestClusterPassesThroughNullBBoxAsSingleton(t *testing.T) {
	t.Helper()
	withBBox := rectRecord(0, 0, 100, 100)
	noBBox := record.Image{Colorspace: record.ColorspaceRGB}
	clusters := Clusters([]record.Image{withBBox, noBBox}, geometry.DefaultOverlapDistance, geometry.DefaultOverlapDistanceBBox)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
}

func TestClusterCoversAllIndices(t *testing.T) {
	t.Helper()
	recs := []record.Image{
		rectRecord(0, 0, 100, 100),
		rectRecord(99.5, 0, 200, 100),
		rectRecord(2000, 2000, 2100, 2100),
	}
	clusters := Clusters(recs, geometry.DefaultOverlapDistance, geometry.DefaultOverlapDistanceBBox)

	seen := map[int]int{}
	for _, c := range clusters {
		for _, idx := range c {
			seen[idx]++
		}
	}
	for i := range recs {
		if seen[i] != 1 {
			t.Fatalf("index %d covered %d times, want exactly 1", i, seen[i])
		}
	}
}
