package assets

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Scale resamples an image to the given size with bilinear filtering. The
// source is returned untouched when it already matches.
func Scale(src image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Placeholder builds the magenta/black checkerboard shown in place of a
// missing or undecodable image, so broken references are visible on screen
// instead of crashing the scene.
func Placeholder(w, h int) image.Image {
	if w <= 0 {
		w = 64
	}
	if h <= 0 {
		h = 64
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	magenta := color.RGBA{R: 0xff, B: 0xff, A: 0xff}
	black := color.RGBA{A: 0xff}
	const cell = 8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, magenta)
			} else {
				img.SetRGBA(x, y, black)
			}
		}
	}
	return img
}
