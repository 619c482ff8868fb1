// Package postprocess cleans an extraction output directory after all
// pages have been written: single-color images are removed, and
// near-duplicate images (same page, same coordinates within floating
// point tolerance) are reduced to one survivor.
package postprocess

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var coordFilenameRe = regexp.MustCompile(`^p-(\d+)-x0-([\-0-9.]+)-y0-([\-0-9.]+)-x1-([\-0-9.]+)-y1-([\-0-9.]+)-(\d+)\.png$`)

// fileInfo is a parsed output filename plus its counter-derived sort key.
// Files that don't match the coordinate-bearing Normal-mode naming scheme
// (e.g. Safe mode's p-<page>-<counter>.png) carry ok=false and are only
// ever checked for single-color removal, never for near-duplicates.
type fileInfo struct {
	path           string
	page           int
	x0, y0, x1, y1 float64
	counter        int
	ok             bool
}

// Run processes dir: every call is expected to converge to the same final
// file set regardless of how many times it runs (idempotence), since a
// second pass over an already-clean directory finds nothing left to
// remove.
func Run(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("postprocess: reading %s: %w", dir, err)
	}

	var infos []fileInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		infos = append(infos, parseFilename(filepath.Join(dir, e.Name()), e.Name()))
	}

	// Sort by counter descending so newer synthetic merges are preferred
	// as survivors when two records tie on coordinates.
	sortByCounterDescending(infos)

	for len(infos) > 0 {
		head := infos[0]
		infos = infos[1:]

		singleColor, err := isSingleColor(head.path)
		if err != nil {
			continue
		}
		if singleColor {
			os.Remove(head.path)
			continue
		}

		if !head.ok {
			continue
		}

		for i, other := range infos {
			if !other.ok || !isCloseInfos(head, other) {
				continue
			}
			del, deletePath, err := resolveDuplicate(head.path, other.path)
			if err != nil {
				continue
			}
			if !del {
				continue
			}
			os.Remove(deletePath)
			if deletePath == other.path {
				infos = append(infos[:i], infos[i+1:]...)
			} else {
				// head itself was deleted as the loser; stop scanning its
				// duplicates and move to the next head.
			}
			break
		}
	}

	return nil
}

func sortByCounterDescending(infos []fileInfo) {
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].counter > infos[j-1].counter; j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}

func parseFilename(path, name string) fileInfo {
	m := coordFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return fileInfo{path: path, counter: safeModeCounter(name)}
	}
	page, _ := strconv.Atoi(m[1])
	x0, _ := strconv.ParseFloat(m[2], 64)
	y0, _ := strconv.ParseFloat(m[3], 64)
	x1, _ := strconv.ParseFloat(m[4], 64)
	y1, _ := strconv.ParseFloat(m[5], 64)
	counter, _ := strconv.Atoi(m[6])
	return fileInfo{path: path, page: page, x0: x0, y0: y0, x1: x1, y1: y1, counter: counter, ok: true}
}

var safeModeRe = regexp.MustCompile(`^p-\d+-(\d+)\.png$`)

func safeModeCounter(name string) int {
	m := safeModeRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// isCloseInfos reports whether a and b's five coordinates (page, x0, y0,
// x1, y1) all agree within ordinary floating-point proximity.
func isCloseInfos(a, b fileInfo) bool {
	return isClose(float64(a.page), float64(b.page)) &&
		isClose(a.x0, b.x0) && isClose(a.y0, b.y0) &&
		isClose(a.x1, b.x1) && isClose(a.y1, b.y1)
}

const (
	closeRelTol = 1e-5
	closeAbsTol = 1e-8
)

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= math.Max(closeRelTol*math.Max(math.Abs(a), math.Abs(b)), closeAbsTol)
}

// isSingleColor reports whether every channel's (min,max) extrema
// coincide, i.e. the image carries no information at all.
func isSingleColor(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	img, err := decodePNG(f)
	if err != nil {
		return false, err
	}

	b := img.Bounds()
	var minR, minG, minB, minA uint32 = 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF
	var maxR, maxG, maxB, maxA uint32
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			minR, maxR = minUint32(minR, r), maxUint32(maxR, r)
			minG, maxG = minUint32(minG, g), maxUint32(maxG, g)
			minB, maxB = minUint32(minB, bl), maxUint32(maxB, bl)
			minA, maxA = minUint32(minA, a), maxUint32(maxA, a)
		}
	}
	return minR == maxR && minG == maxG && minB == maxB && minA == maxA, nil
}

// resolveDuplicate decides whether pathI or pathJ should be removed when
// their coordinates are near-identical: different sizes never merge;
// between a grayscale and non-grayscale image the grayscale one loses;
// between two grayscale images the one with the smaller counter loses;
// between two equal-mode color images with no pixel difference, the
// first (pathI) loses.
func resolveDuplicate(pathI, pathJ string) (del bool, deletePath string, err error) {
	imgI, err := decodeFile(pathI)
	if err != nil {
		return false, "", err
	}
	imgJ, err := decodeFile(pathJ)
	if err != nil {
		return false, "", err
	}

	if imgI.Bounds().Size() != imgJ.Bounds().Size() {
		return false, "", nil
	}

	grayI := isGrayscale(imgI)
	grayJ := isGrayscale(imgJ)

	if grayI != grayJ {
		if grayJ {
			return true, pathJ, nil
		}
		return true, pathI, nil
	}

	if grayI && grayJ {
		// Both grayscale: the one with the smaller trailing counter loses.
		if filenameCounter(pathI) < filenameCounter(pathJ) {
			return true, pathI, nil
		}
		return true, pathJ, nil
	}

	if imagesPixelEqual(imgI, imgJ) {
		return true, pathI, nil
	}
	return false, "", nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodePNG(f)
}

func isGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}

func imagesPixelEqual(a, b image.Image) bool {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Size() != bb.Size() {
		return false
	}
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			ra, ga, bba, aa := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			rb, gb, bbb, ab := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if ra != rb || ga != gb || bba != bbb || aa != ab {
				return false
			}
		}
	}
	return true
}

func filenameCounter(path string) int {
	base := filepath.Base(path)
	if m := coordFilenameRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[6])
		return n
	}
	return safeModeCounter(base)
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func decodePNG(r io.Reader) (image.Image, error) {
	return png.Decode(r)
}
