// Package detection reads dimension callouts off a drawing with a vision
// model and implements recognition.Recognizer.
package detection

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/menta2k/drawing-converter/pkg/client"
	"github.com/menta2k/drawing-converter/pkg/processing"
	"github.com/menta2k/drawing-converter/pkg/recognition"
	"github.com/menta2k/drawing-converter/pkg/types"
	"github.com/menta2k/drawing-converter/pkg/units"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for every imperial dimension callout.
const DefaultPrompt = `You are reading a technical engineering drawing.

Find every dimension callout written in inches and return JSON only:
{
  "dimensions": [
    {"value": "2.50", "x": 150, "y": 100, "confidence": 98}
  ]
}

HARD RULES
- "value" is the number exactly as printed, without the inch mark.
- "x" and "y" are the pixel position of the top-left of the callout text.
- "confidence" is 0-100: how sure you are the digits are read correctly.
- Skip tolerances, notes, part numbers, and title block text.
- If there are no dimensions, return {"dimensions": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options configures how images are sent to the model.
type Options struct {
	Model   string
	Prompt  string
	Format  string // "jpg" or "png"
	MaxDim  int
	Quality int
}

// Detector handles dimension detection using vision models
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, p *processing.Processor, opts Options) *Detector {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	if p == nil {
		p = processing.NewProcessor(0)
	}
	return &Detector{client: c, processor: p, opts: opts}
}

// Recognize implements recognition.Recognizer.
func (d *Detector) Recognize(ctx context.Context, img image.Image, report recognition.Reporter) ([]types.Annotation, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: %s: no image", recognition.ErrStageFailed, recognition.StagePreprocess)
	}
	bounds := img.Bounds()

	notify(report, recognition.Preprocess)
	b64, scale, err := d.processor.PrepareImageForModel(img, d.opts.Format, d.opts.MaxDim, d.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", recognition.ErrStageFailed, recognition.StagePreprocess, err)
	}

	notify(report, recognition.Detect)
	result, err := d.client.QueryDimensions(ctx, d.opts.Model, d.opts.Prompt, b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", recognition.ErrStageFailed, recognition.StageDetect, err)
	}

	notify(report, recognition.Recognize)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", recognition.ErrStageFailed, recognition.StageRecognize, err)
	}
	return toAnnotations(result.Dimensions, scale, bounds), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	b64, _, err := d.processor.PrepareImageForModel(img, d.opts.Format, d.opts.MaxDim, d.opts.Quality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.opts.Model, SimpleTestPrompt, b64)
}

func notify(report recognition.Reporter, s recognition.Stage) {
	if report != nil {
		report(s)
	}
}

// toAnnotations maps model output onto the source image. Entries whose value
// is not a number are dropped, duplicates are merged, and ids run 1..n in
// reading order of the response.
func toAnnotations(dims []types.Dimension, scale float64, bounds image.Rectangle) []types.Annotation {
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]types.Annotation, 0, len(dims))
	seen := map[string]struct{}{}

	for _, dim := range dims {
		value := normalizeValue(dim.Value)
		if !units.Valid(value) {
			continue
		}

		x, y := dim.X, dim.Y
		if x <= 1 && y <= 1 && (x != math.Trunc(x) || y != math.Trunc(y)) {
			// Normalized coordinates
			x, y = x*float64(w), y*float64(h)
		} else {
			x, y = x*scale, y*scale
		}
		px := bounds.Min.X + int(clamp(math.Round(x), 0, float64(w-1)))
		py := bounds.Min.Y + int(clamp(math.Round(y), 0, float64(h-1)))

		key := fmt.Sprintf("%s@%d,%d", value, px, py)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		out = append(out, types.Annotation{
			ID:         len(out) + 1,
			X:          px,
			Y:          py,
			Imperial:   value,
			Confidence: normalizeConfidence(dim.Confidence),
			Unit:       types.InchUnit,
		})
	}
	return out
}

// normalizeValue strips inch marks and whitespace around a callout.
func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "in")
	v = strings.TrimRight(v, `"”″ `)
	return strings.TrimSpace(v)
}

// normalizeConfidence accepts either a 0-1 fraction or a percentage.
func normalizeConfidence(c float64) int {
	if math.IsNaN(c) {
		return 0
	}
	if c > 0 && c <= 1 {
		c *= 100
	}
	return int(clamp(math.Round(c), 0, types.MaxConfidence))
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ recognition.Recognizer = (*Detector)(nil)
