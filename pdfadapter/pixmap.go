package pdfadapter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// Colorspace name constants, matching the names the PDF adapter reports.
const (
	ColorspaceGray = "DeviceGray"
	ColorspaceRGB  = "DeviceRGB"
	ColorspaceCMYK = "DeviceCMYK"
)

// goPixmap is the concrete Pixmap implementation: a decoded raster plus
// its reported colorspace name and an optional attached alpha plane.
type goPixmap struct {
	csName string
	w, h   int
	// samples holds interleaved component bytes, componentsPerPixel(csName) per pixel.
	samples []byte
	alpha   []byte // optional, one byte per pixel
}

func componentsPerPixel(csName string) int {
	switch csName {
	case ColorspaceGray:
		return 1
	case ColorspaceCMYK:
		return 4
	default:
		return 3
	}
}

// NewPixmap builds a Pixmap from raw interleaved component samples.
func NewPixmap(csName string, w, h int, samples []byte) Pixmap {
	return &goPixmap{csName: csName, w: w, h: h, samples: samples}
}

func (p *goPixmap) ColorspaceName() string { return p.csName }
func (p *goPixmap) Width() int             { return p.w }
func (p *goPixmap) Height() int            { return p.h }
func (p *goPixmap) Samples() []byte        { return p.samples }

// ToSRGB converts Gray/RGB/CMYK samples to 3-component sRGB. ICC profile
// fidelity is out of scope; this is a flat channel conversion, not a
// profile transform.
func (p *goPixmap) ToSRGB() (Pixmap, error) {
	switch p.csName {
	case ColorspaceRGB:
		return p, nil
	case ColorspaceGray:
		out := make([]byte, p.w*p.h*3)
		for i := 0; i < p.w*p.h; i++ {
			g := p.samples[i]
			out[i*3], out[i*3+1], out[i*3+2] = g, g, g
		}
		return &goPixmap{csName: ColorspaceRGB, w: p.w, h: p.h, samples: out, alpha: p.alpha}, nil
	case ColorspaceCMYK:
		out := make([]byte, p.w*p.h*3)
		for i := 0; i < p.w*p.h; i++ {
			c, m, y, k := p.samples[i*4], p.samples[i*4+1], p.samples[i*4+2], p.samples[i*4+3]
			r, g, b := color.CMYKToRGB(c, m, y, k)
			out[i*3], out[i*3+1], out[i*3+2] = r, g, b
		}
		return &goPixmap{csName: ColorspaceRGB, w: p.w, h: p.h, samples: out, alpha: p.alpha}, nil
	default:
		return nil, fmt.Errorf("pdfadapter: cannot convert unknown colorspace %q to sRGB", p.csName)
	}
}

// WithAlpha returns a copy of p with per-pixel alpha taken from
// alphaSamples (one byte per pixel, same dimensions as p).
func (p *goPixmap) WithAlpha(alphaSamples []byte) Pixmap {
	cp := *p
	cp.alpha = alphaSamples
	return &cp
}

// toGoImage renders the pixmap to a stdlib image.Image, honoring any
// attached alpha plane.
func (p *goPixmap) toGoImage() (image.Image, error) {
	cpp := componentsPerPixel(p.csName)
	if p.csName == ColorspaceCMYK {
		rgb, err := p.ToSRGB()
		if err != nil {
			return nil, err
		}
		return rgb.(*goPixmap).toGoImage()
	}

	if p.alpha != nil {
		img := image.NewNRGBA(image.Rect(0, 0, p.w, p.h))
		for i := 0; i < p.w*p.h; i++ {
			var r, g, b byte
			if cpp == 1 {
				r = p.samples[i]
				g, b = r, r
			} else {
				r, g, b = p.samples[i*3], p.samples[i*3+1], p.samples[i*3+2]
			}
			off := i * 4
			img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = r, g, b, p.alpha[i]
		}
		return img, nil
	}

	if cpp == 1 {
		return &image.Gray{Pix: p.samples, Stride: p.w, Rect: image.Rect(0, 0, p.w, p.h)}, nil
	}
	img := image.NewRGBA(image.Rect(0, 0, p.w, p.h))
	for i := 0; i < p.w*p.h; i++ {
		off := i * 4
		img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] =
			p.samples[i*3], p.samples[i*3+1], p.samples[i*3+2], 0xFF
	}
	return img, nil
}

// PNG serializes the pixmap to PNG, standing in for fitz's
// pixmap.tobytes("png"); the pixel writer and the page driver use it to
// render a pixmap before decoding it to an image.Image. Final output write-out with
// the forensic-preserving zero-compression setting is the pixel writer's
// responsibility, not this helper's.
func (p *goPixmap) PNG() ([]byte, error) {
	img, err := p.toGoImage()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
