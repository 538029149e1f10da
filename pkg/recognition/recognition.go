// Package recognition turns an uploaded drawing into a list of dimension
// annotations.
//
// A run advances through preprocess, detect-regions and recognize-text,
// reporting a human-readable status for each stage. The Recognizer doing the
// work is either the built-in Mock, which returns fixed seed data, or a vision
// model backend (see package detection). The Pipeline adds the final
// conversion stage and hands back a complete set or an error, never a partial
// result.
package recognition

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/menta2k/drawing-converter/pkg/types"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StagePreprocess StageName = "preprocess"
	StageDetect     StageName = "detect-regions"
	StageRecognize  StageName = "recognize-text"
	StageConvert    StageName = "convert"
)

// Stage is a step of a run together with the status shown while it runs.
type Stage struct {
	Name   StageName `json:"name"`
	Status string    `json:"status"`
}

var (
	Preprocess = Stage{StagePreprocess, "Preprocessing: Cleaning and enhancing image..."}
	Detect     = Stage{StageDetect, "Text Detection: Locating dimensional annotations..."}
	Recognize  = Stage{StageRecognize, "OCR: Recognising dimensional values..."}
	Convert    = Stage{StageConvert, "Conversion: Calculating metric values..."}
)

// Final status strings.
const (
	StatusComplete = "Complete! Review flagged dimensions."
	StatusError    = "Error during processing. Please try again."
)

// ErrStageFailed wraps any failure raised inside a stage.
var ErrStageFailed = errors.New("recognition stage failed")

// Reporter is called when a stage starts.
type Reporter func(Stage)

// Recognizer produces annotations for an image. Implementations call report
// once per stage they enter and must honour ctx cancellation.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, report Reporter) ([]types.Annotation, error)
}

// Delays holds the simulated latency of each stage.
type Delays struct {
	Preprocess time.Duration
	Detect     time.Duration
	Recognize  time.Duration
	Convert    time.Duration
}

// DefaultDelays are the simulated stage latencies shown in the UI.
func DefaultDelays() Delays {
	return Delays{
		Preprocess: 800 * time.Millisecond,
		Detect:     1000 * time.Millisecond,
		Recognize:  1200 * time.Millisecond,
		Convert:    600 * time.Millisecond,
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func emit(report Reporter, s Stage) {
	if report != nil {
		report(s)
	}
}
