package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/drawing-converter/pkg/annotation"
	"github.com/menta2k/drawing-converter/pkg/types"
)

// Pipeline runs a Recognizer and the conversion stage.
type Pipeline struct {
	recognizer   Recognizer
	convertDelay time.Duration
}

// NewPipeline creates a pipeline around a recognizer.
func NewPipeline(r Recognizer, convertDelay time.Duration) *Pipeline {
	return &Pipeline{recognizer: r, convertDelay: convertDelay}
}

// Run executes all stages and returns the complete annotation set with
// metric values derived. Any failure returns an error wrapping
// ErrStageFailed and no annotations.
func (p *Pipeline) Run(ctx context.Context, img image.Image, report Reporter) ([]types.Annotation, error) {
	found, err := p.recognizer.Recognize(ctx, img, report)
	if err != nil {
		return nil, wrapStage(err)
	}

	emit(report, Convert)
	if err := wait(ctx, p.convertDelay); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStageFailed, StageConvert, err)
	}

	// Store.Replace validates ids and derives metric values.
	s := annotation.New()
	if err := s.Replace(found); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStageFailed, StageConvert, err)
	}
	return s.All(), nil
}

func wrapStage(err error) error {
	if errors.Is(err, ErrStageFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStageFailed, err)
}
