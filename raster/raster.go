// Package raster turns arbitrary images into packed 1 bit frames for
// monochrome e-paper panels.
package raster

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MaxHalford/halfgone"
	"github.com/disintegration/imaging"
)

// Options controls how an image is scaled and reduced to two colors.
type Options struct {
	// Fill crops the image to cover the whole panel instead of letterboxing
	// it on white.
	Fill bool
	// Threshold switches from Floyd-Steinberg dithering to a plain threshold
	// when non-zero. Gray levels below it become black.
	Threshold uint8
	// NoRotate keeps landscape images landscape on a portrait panel.
	NoRotate bool
}

// Prepare scales img to width x height and dithers it to pure black and
// white. Landscape images are rotated a quarter turn counter clockwise when
// the panel is portrait.
func Prepare(img image.Image, width, height int, opts Options) *image.Gray {
	b := img.Bounds()
	if !opts.NoRotate && b.Dx() > b.Dy() && width < height {
		img = imaging.Rotate90(img)
		b = img.Bounds()
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(gray, gray.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	var scaled image.Image = img
	if b.Dx() != width || b.Dy() != height {
		if opts.Fill {
			scaled = imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
		} else {
			scaled = imaging.Fit(img, width, height, imaging.Lanczos)
		}
	}
	sb := scaled.Bounds()
	offset := image.Pt((width-sb.Dx())/2, (height-sb.Dy())/2)
	draw.Draw(gray, sb.Sub(sb.Min).Add(offset), scaled, sb.Min, draw.Src)

	if opts.Threshold > 0 {
		return halfgone.ThresholdDitherer{Threshold: opts.Threshold}.Apply(gray)
	}
	return halfgone.FloydSteinbergDitherer{}.Apply(gray)
}

// Pack converts img to MSB first 1bpp rows padded to a whole byte. Light
// pixels set their bit, which the panel shows as white.
func Pack(img *image.Gray) []byte {
	b := img.Bounds()
	lineWidth := (b.Dx() + 7) / 8
	buf := make([]byte, lineWidth*b.Dy())

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= 0x80 {
				buf[y*lineWidth+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return buf
}

// Frame is Prepare followed by Pack.
func Frame(img image.Image, width, height int, opts Options) []byte {
	return Pack(Prepare(img, width, height, opts))
}
