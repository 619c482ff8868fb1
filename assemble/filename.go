package assemble

import "fmt"

// Filename encodes page and final bbox into the Normal-mode output name:
// p-<page>-x0-<x0>-y0-<y0>-x1-<x1>-y1-<y1>-<counter>.png, coordinates
// formatted to three decimals so the post-processor can parse them back.
func Filename(page, counter int, x0, y0, x1, y1 float64) string {
	return fmt.Sprintf("p-%d-x0-%.3f-y0-%.3f-x1-%.3f-y1-%.3f-%d.png", page, x0, y0, x1, y1, counter)
}

// SafeModeFilename is the simpler name used by the Safe-mode fallback,
// which carries no correlated bbox.
func SafeModeFilename(page, counter int) string {
	return fmt.Sprintf("p-%d-%d.png", page, counter)
}
