// Package overlay draws recognized dimensions onto the source drawing.
//
// For every annotation two labels are drawn: the imperial value in the
// source style at the anchor, and 25px below it the converted metric value,
// styled by confidence. Low-confidence labels get a trailing "?" and a filled
// indicator dot to their left.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"

	"github.com/menta2k/drawing-converter/pkg/typeface"
	"github.com/menta2k/drawing-converter/pkg/types"
)

// Label geometry in pixels.
const (
	LabelPadding  = 5
	LabelHeight   = 25
	LabelAscent   = 20
	LabelSpacing  = 25
	StrokeWidth   = 2
	DotOffset     = 10
	DotRadius     = 6
	LowConfMarker = "?"
)

// Style is the colour pair of one label kind.
type Style struct {
	Text   color.NRGBA
	Stroke color.NRGBA
}

// Palette holds the three label styles.
type Palette struct {
	Source Style
	Normal Style
	Low    Style
	Dot    color.NRGBA
}

// DefaultPalette returns blue source labels and green/red converted labels.
func DefaultPalette() Palette {
	return Palette{
		Source: Style{Text: color.NRGBA{59, 130, 246, 230}, Stroke: color.NRGBA{59, 130, 246, 255}},
		Normal: Style{Text: color.NRGBA{34, 197, 94, 230}, Stroke: color.NRGBA{34, 197, 94, 255}},
		Low:    Style{Text: color.NRGBA{239, 68, 68, 230}, Stroke: color.NRGBA{239, 68, 68, 255}},
		Dot:    color.NRGBA{239, 68, 68, 255},
	}
}

// ErrNoImage is returned when Render is called without a source image.
var ErrNoImage = errors.New("overlay: no source image")

// Renderer draws annotation labels.
type Renderer struct {
	threshold int
	fontSize  float64
	palette   Palette
}

// NewRenderer creates a renderer. threshold is the confidence below which a
// label is drawn in the low-confidence style.
func NewRenderer(threshold int, fontSize float64) *Renderer {
	if fontSize <= 0 {
		fontSize = 16
	}
	return &Renderer{threshold: threshold, fontSize: fontSize, palette: DefaultPalette()}
}

// Render returns a new raster the size of src with every annotation drawn on
// top of it. src is not modified.
func (r *Renderer) Render(src image.Image, annotations []types.Annotation) (*image.NRGBA, error) {
	if src == nil {
		return nil, ErrNoImage
	}
	dst := imaging.Clone(src)

	face, err := typeface.MonoBold(r.fontSize)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	defer face.Close()

	for _, a := range annotations {
		r.drawAnnotation(dst, face, a)
	}
	return dst, nil
}

func (r *Renderer) drawAnnotation(dst *image.NRGBA, face font.Face, a types.Annotation) {
	sourceText := a.Imperial + a.Unit
	r.drawLabel(dst, face, sourceText, a.X, a.Y, r.palette.Source)

	low := a.LowConfidence(r.threshold)
	style := r.palette.Normal
	metricText := a.Metric + "mm "
	if low {
		style = r.palette.Low
		metricText += LowConfMarker
	}
	y := a.Y + LabelSpacing
	r.drawLabel(dst, face, metricText, a.X, y, style)

	if low {
		fillCircle(dst, a.X-DotOffset, y-DotOffset, DotRadius, r.palette.Dot)
	}
}

// drawLabel draws text with its baseline at (x, y) inside a stroked box.
func (r *Renderer) drawLabel(dst *image.NRGBA, face font.Face, text string, x, y int, style Style) {
	w := textWidth(face, text) + 2*LabelPadding
	strokeRect(dst, x-LabelPadding, y-LabelAscent, w, LabelHeight, StrokeWidth, style.Stroke)
	fillText(dst, face, text, x, y, style.Text)
}
