// Package pixelwriter serializes a single image record (real or synthetic)
// to a PNG file on disk, applying the colorspace/alpha decision table and
// the minimum-size filter.
package pixelwriter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/cardenuto-lab/pdffigures/pdfadapter"
)

// Source is everything the writer needs to serialize one record. Exactly
// one of Pixmap or Image is set: Pixmap for xref-backed records resolved
// through the PDF adapter, Image for synthetic composites already
// rendered by the assembler.
type Source struct {
	Width, Height int
	AltColorspace string
	Pixmap        pdfadapter.Pixmap
	MaskPixmap    pdfadapter.Pixmap
	Image         image.Image
}

func (s Source) hasAlpha() bool { return s.MaskPixmap != nil }

// Write applies the colorspace/alpha decision table and serializes src to
// path. It returns (false, nil) for the silent-skip cases (too small,
// empty colorspace, a colorspace that cannot be converted to sRGB) and
// (false, err) for an I/O failure or a failure to render the pixmap.
func Write(src Source, path string, minWidth, minHeight int) (bool, error) {
	if src.Width < minWidth || src.Height < minHeight {
		return false, nil
	}

	img, ok, err := render(src)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := encodeAndWrite(img, path); err != nil {
		return false, err
	}
	return true, nil
}

func render(src Source) (image.Image, bool, error) {
	if src.Image != nil {
		return src.Image, true, nil
	}
	if src.Pixmap == nil {
		return nil, false, nil
	}

	pm := src.Pixmap
	csName := pm.ColorspaceName()
	if csName == "" {
		return nil, false, nil
	}

	if csName == pdfadapter.ColorspaceCMYK {
		rgb, err := pm.ToSRGB()
		if err != nil {
			return nil, false, fmt.Errorf("pixelwriter: converting CMYK to sRGB: %w", err)
		}
		pm = rgb
		csName = pm.ColorspaceName()
	}

	switch csName {
	case pdfadapter.ColorspaceGray:
		if !src.hasAlpha() {
			if isSeparationOrDeviceN(src.AltColorspace) {
				pm = invertGray(pm)
			}
			return pixmapToGoImage(pm)
		}
		rgb, err := pm.ToSRGB()
		if err != nil {
			return nil, false, fmt.Errorf("pixelwriter: converting gray to RGB for alpha composite: %w", err)
		}
		return withAlpha(rgb, src.MaskPixmap)
	case pdfadapter.ColorspaceRGB:
		if !src.hasAlpha() {
			return pixmapToGoImage(pm)
		}
		return withAlpha(pm, src.MaskPixmap)
	default:
		rgb, err := pm.ToSRGB()
		if err != nil {
			return nil, false, nil
		}
		if src.hasAlpha() {
			return withAlpha(rgb, src.MaskPixmap)
		}
		return pixmapToGoImage(rgb)
	}
}

func isSeparationOrDeviceN(altColorspace string) bool {
	return altColorspace == "Separation" || altColorspace == "DeviceN"
}

// invertGray returns a copy of a DeviceGray pixmap with intensities
// inverted, mirroring the ink-channel convention some Separation/DeviceN
// sources encode gray data under.
func invertGray(pm pdfadapter.Pixmap) pdfadapter.Pixmap {
	src := pm.Samples()
	out := make([]byte, len(src))
	for i, v := range src {
		out[i] = 255 - v
	}
	return pdfadapter.NewPixmap(pm.ColorspaceName(), pm.Width(), pm.Height(), out)
}

func withAlpha(pm pdfadapter.Pixmap, mask pdfadapter.Pixmap) (image.Image, bool, error) {
	withA := pm.WithAlpha(mask.Samples())
	return pixmapToGoImage(withA)
}

func pixmapToGoImage(pm pdfadapter.Pixmap) (image.Image, bool, error) {
	png, err := pm.PNG()
	if err != nil {
		return nil, false, fmt.Errorf("pixelwriter: rendering pixmap: %w", err)
	}
	img, err := decodePNGBytes(png)
	if err != nil {
		return nil, false, fmt.Errorf("pixelwriter: decoding rendered pixmap: %w", err)
	}
	return img, true, nil
}

func decodePNGBytes(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

// DecodePNG decodes PNG bytes to an image.Image. Exposed for callers
// (such as the page driver) that need to rasterize a pixmap ahead of
// handing it to the assembler, outside the Write decision table.
func DecodePNG(data []byte) (image.Image, error) {
	return decodePNGBytes(data)
}

// compositeOnWhite flattens an image with alpha onto a pure-white
// background, producing RGB-only output from an RGBA source. Nothing in
// this package calls it: the Pixel writer always preserves full alpha when
// a record has one.
func compositeOnWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0xFFFF {
				out.Set(x, y, color.RGBA{byte(r >> 8), byte(g >> 8), byte(bl >> 8), 0xFF})
				continue
			}
			sa := a >> 8
			da := 255 - sa
			cr := byte((r>>8)*sa/255 + 255*da/255)
			cg := byte((g>>8)*sa/255 + 255*da/255)
			cb := byte((bl>>8)*sa/255 + 255*da/255)
			out.Set(x, y, color.RGBA{cr, cg, cb, 0xFF})
		}
	}
	return out
}

// encodeAndWrite writes img to path as PNG with compression level 0
// (raw), preserving bit-exact pixel data for downstream forensic analysis.
func encodeAndWrite(img image.Image, path string) error {
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
