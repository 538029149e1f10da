// Package export composes the annotated raster with a provenance header and
// writes it as a PNG download.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/drawing-converter/pkg/processing"
	"github.com/menta2k/drawing-converter/pkg/typeface"
)

// ErrNothingToExport is returned when there is no processed raster.
var ErrNothingToExport = errors.New("export: no processed image")

// Defaults for the watermark band.
const (
	DefaultHeaderHeight   = 80
	DefaultSoftware       = "Technical Drawing Converter v1.0"
	DefaultScaleReference = "1 inch = 25.4 mm"
	FilenamePrefix        = "converted-drawing-"
	DateLayout            = "02/01/2006"
)

var (
	Background = color.NRGBA{255, 255, 255, 255}
	TextColor  = color.NRGBA{30, 41, 59, 255}
)

// Options configures the watermark.
type Options struct {
	HeaderHeight   int
	Software       string
	ScaleReference string
}

// Exporter builds export rasters.
type Exporter struct {
	opts Options
	now  func() time.Time
}

// New creates an exporter. Zero option fields take the defaults.
func New(opts Options) *Exporter {
	if opts.HeaderHeight <= 0 {
		opts.HeaderHeight = DefaultHeaderHeight
	}
	if opts.Software == "" {
		opts.Software = DefaultSoftware
	}
	if opts.ScaleReference == "" {
		opts.ScaleReference = DefaultScaleReference
	}
	return &Exporter{opts: opts, now: time.Now}
}

// WithClock returns a copy of the exporter reading time from now.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	c := *e
	c.now = now
	return &c
}

// HeaderHeight returns the height of the watermark band.
func (e *Exporter) HeaderHeight() int {
	return e.opts.HeaderHeight
}

// Filename returns the download name for an export made at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("%s%d.png", FilenamePrefix, t.UnixMilli())
}

// Compose returns a new raster with a white watermark band above raster.
func (e *Exporter) Compose(raster image.Image) (*image.NRGBA, time.Time, error) {
	if raster == nil {
		return nil, time.Time{}, ErrNothingToExport
	}
	now := e.now()
	b := raster.Bounds()
	h := e.opts.HeaderHeight

	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+h))
	draw.Draw(out, out.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	if err := e.drawWatermark(out, now); err != nil {
		return nil, time.Time{}, err
	}

	draw.Draw(out, image.Rect(0, h, b.Dx(), b.Dy()+h), raster, b.Min, draw.Over)
	return out, now, nil
}

// Write composes raster and encodes it as PNG to w. It returns the filename
// the download should be offered under.
func (e *Exporter) Write(w io.Writer, raster image.Image) (string, error) {
	out, at, err := e.Compose(raster)
	if err != nil {
		return "", err
	}
	if err := processing.EncodePNG(w, out); err != nil {
		return "", fmt.Errorf("export: encode png: %w", err)
	}
	return Filename(at), nil
}

func (e *Exporter) drawWatermark(dst draw.Image, now time.Time) error {
	title, err := typeface.MonoBold(14)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer title.Close()
	body, err := typeface.Mono(12)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer body.Close()

	lines := []struct {
		face font.Face
		text string
		y    int
	}{
		{title, "Converted: " + now.Format(DateLayout), 30},
		{body, "Software: " + e.opts.Software, 50},
		{body, "Scale Ref: " + e.opts.ScaleReference, 65},
	}
	for _, l := range lines {
		d := &font.Drawer{Dst: dst, Src: image.NewUniform(TextColor), Face: l.face, Dot: fixed.P(20, l.y)}
		d.DrawString(l.text)
	}
	return nil
}
