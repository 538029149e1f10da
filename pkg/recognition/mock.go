package recognition

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/drawing-converter/pkg/types"
)

// SeedAnnotations returns the fixed result of the mock recognizer.
func SeedAnnotations() []types.Annotation {
	return []types.Annotation{
		{ID: 1, X: 150, Y: 100, Imperial: "2.50", Confidence: 98, Unit: types.InchUnit},
		{ID: 2, X: 300, Y: 200, Imperial: "1.25", Confidence: 95, Unit: types.InchUnit},
		{ID: 3, X: 450, Y: 150, Imperial: "0.375", Confidence: 78, Unit: types.InchUnit},
		{ID: 4, X: 200, Y: 300, Imperial: "3.00", Confidence: 92, Unit: types.InchUnit},
		{ID: 5, X: 500, Y: 250, Imperial: "0.125", Confidence: 82, Unit: types.InchUnit},
	}
}

// Mock simulates recognition with fixed delays and returns SeedAnnotations
// regardless of the image content.
type Mock struct {
	Delays Delays
	// FailAt makes the run fail when it enters the named stage.
	FailAt StageName
}

// NewMock creates a mock recognizer.
func NewMock(delays Delays) *Mock {
	return &Mock{Delays: delays}
}

// Recognize implements Recognizer.
func (m *Mock) Recognize(ctx context.Context, img image.Image, report Reporter) ([]types.Annotation, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrStageFailed)
	}

	steps := []struct {
		stage Stage
		delay time.Duration
	}{
		{Preprocess, m.Delays.Preprocess},
		{Detect, m.Delays.Detect},
		{Recognize, m.Delays.Recognize},
	}

	for _, step := range steps {
		emit(report, step.stage)
		if m.FailAt == step.stage.Name {
			return nil, fmt.Errorf("%w: %s: simulated failure", ErrStageFailed, step.stage.Name)
		}
		if err := wait(ctx, step.delay); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStageFailed, step.stage.Name, err)
		}
	}

	return SeedAnnotations(), nil
}
