package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// strokeRect outlines the rectangle (x, y, w, h) with a line of the given
// width centred on its edges.
func strokeRect(dst draw.Image, x, y, w, h, width int, c color.Color) {
	src := image.NewUniform(c)
	half := width / 2
	outer := image.Rect(x-half, y-half, x+w+width-half, y+h+width-half)
	edges := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+width),
		image.Rect(outer.Min.X, outer.Max.Y-width, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y+width, outer.Min.X+width, outer.Max.Y-width),
		image.Rect(outer.Max.X-width, outer.Min.Y+width, outer.Max.X, outer.Max.Y-width),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Over)
	}
}

// fillText draws s with its baseline starting at (x, y).
func fillText(dst draw.Image, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// textWidth returns the advance of s in whole pixels.
func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// fillCircle draws an anti-aliased disc centred on (cx, cy).
func fillCircle(dst draw.Image, cx, cy, r int, c color.Color) {
	size := 2*r + 2
	origin := image.Pt(cx-r-1, cy-r-1)

	z := vector.NewRasterizer(size, size)
	fx, fy, fr := float32(r+1), float32(r+1), float32(r)
	k := float32(kappa) * fr
	z.MoveTo(fx+fr, fy)
	z.CubeTo(fx+fr, fy+k, fx+k, fy+fr, fx, fy+fr)
	z.CubeTo(fx-k, fy+fr, fx-fr, fy+k, fx-fr, fy)
	z.CubeTo(fx-fr, fy-k, fx-k, fy-fr, fx, fy-fr)
	z.CubeTo(fx+k, fy-fr, fx+fr, fy-k, fx+fr, fy)
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	target := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}
	draw.DrawMask(dst, target, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}
