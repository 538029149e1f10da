// Package session owns the state of one editing session: the uploaded
// drawing, its annotations, the rendered overlay, the zoom factor and the
// editor selection.
//
// State transitions are pure functions over State; Session serialises them
// and performs the side effects (recognition runs, rendering, export).
package session

import (
	"errors"
	"image"
	"math"

	"github.com/menta2k/drawing-converter/pkg/annotation"
	"github.com/menta2k/drawing-converter/pkg/processing"
	"github.com/menta2k/drawing-converter/pkg/recognition"
	"github.com/menta2k/drawing-converter/pkg/types"
)

var (
	ErrNoImage               = errors.New("no image uploaded")
	ErrNotAnImage            = processing.ErrNotAnImage
	ErrImageRead             = errors.New("error loading image")
	ErrRecognitionInProgress = errors.New("recognition already in progress")
	ErrRecognitionFailed     = errors.New("recognition failed")
	ErrStaleRun              = errors.New("recognition result belongs to a replaced image")
	ErrNotSelectable         = errors.New("annotation is not eligible for editing")
	ErrNoSelection           = errors.New("no annotation selected")
	ErrEmptyDraft            = errors.New("edit value is empty")
)

// Zoom bounds.
const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	ZoomStep    = 0.25
	DefaultZoom = 1.0
)

// EditPolicy decides which annotations may be selected for editing.
type EditPolicy int

const (
	// EditLowConfidence allows editing only annotations below the threshold.
	EditLowConfidence EditPolicy = iota
	// EditAny allows editing every annotation.
	EditAny
)

func (p EditPolicy) String() string {
	if p == EditAny {
		return "any"
	}
	return "low-confidence"
}

// Selection is the annotation currently open in the editor.
type Selection struct {
	ID    int    `json:"id"`
	Draft string `json:"draft"`
}

// State is a snapshot of a session. Reducers never mutate the State or
// annotation store they are given.
type State struct {
	Source      image.Image
	ContentType string
	Processed   image.Image
	Annotations *annotation.Store
	Zoom        float64
	Selection   *Selection
	Processing  bool
	Status      string
	// Generation increments on every upload so results of runs started on a
	// previous image can be recognised and dropped.
	Generation uint64
}

// NewState returns the state of a fresh session.
func NewState() State {
	return State{Annotations: annotation.New(), Zoom: DefaultZoom}
}

// Uploaded replaces the source image and discards everything derived from
// the previous one.
func Uploaded(s State, img image.Image, contentType string) State {
	return State{
		Source:      img,
		ContentType: contentType,
		Annotations: annotation.New(),
		Zoom:        s.Zoom,
		Generation:  s.Generation + 1,
	}
}

// RunStarted marks a recognition run as in flight.
func RunStarted(s State) (State, error) {
	if s.Source == nil {
		return s, ErrNoImage
	}
	if s.Processing {
		return s, ErrRecognitionInProgress
	}
	s.Processing = true
	s.Status = ""
	return s, nil
}

// StageEntered records the status of the stage a run has reached.
func StageEntered(s State, generation uint64, stage recognition.Stage) State {
	if generation != s.Generation || !s.Processing {
		return s
	}
	s.Status = stage.Status
	return s
}

// RunCompleted installs the result of a run wholesale.
func RunCompleted(s State, generation uint64, annotations []types.Annotation, processed image.Image) (State, error) {
	if generation != s.Generation {
		return s, ErrStaleRun
	}
	store := annotation.New()
	if err := store.Replace(annotations); err != nil {
		return RunFailed(s, generation), err
	}
	s.Annotations = store
	s.Processed = processed
	s.Selection = nil
	s.Processing = false
	s.Status = recognition.StatusComplete
	return s, nil
}

// RunFailed ends a run without touching the annotations.
func RunFailed(s State, generation uint64) State {
	if generation != s.Generation {
		return s
	}
	s.Processing = false
	s.Status = recognition.StatusError
	return s
}

// ZoomIn increases the zoom by one step.
func ZoomIn(s State) State {
	return SetZoom(s, s.Zoom+ZoomStep)
}

// ZoomOut decreases the zoom by one step.
func ZoomOut(s State) State {
	return SetZoom(s, s.Zoom-ZoomStep)
}

// SetZoom snaps z to the zoom grid and clamps it to [MinZoom, MaxZoom].
func SetZoom(s State, z float64) State {
	if math.IsNaN(z) {
		return s
	}
	z = math.Round(z/ZoomStep) * ZoomStep
	s.Zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
	return s
}

// Selectable reports whether an annotation may be opened in the editor.
func Selectable(a types.Annotation, policy EditPolicy, threshold int) bool {
	return policy == EditAny || a.LowConfidence(threshold)
}

// Select opens the editor on an annotation with its current value as draft.
func Select(s State, id int, policy EditPolicy, threshold int) (State, error) {
	a, ok := s.Annotations.Get(id)
	if !ok {
		return s, annotation.ErrNotFound
	}
	if !Selectable(a, policy, threshold) {
		return s, ErrNotSelectable
	}
	s.Selection = &Selection{ID: id, Draft: a.Imperial}
	return s, nil
}

// SetDraft replaces the draft value of the open selection.
func SetDraft(s State, value string) (State, error) {
	if s.Selection == nil {
		return s, ErrNoSelection
	}
	s.Selection = &Selection{ID: s.Selection.ID, Draft: value}
	return s, nil
}

// Cancel closes the editor without changing anything.
func Cancel(s State) State {
	s.Selection = nil
	return s
}

// Save writes the draft to the selected annotation and closes the editor.
// An empty draft leaves the state untouched.
func Save(s State) (State, types.Annotation, error) {
	if s.Selection == nil {
		return s, types.Annotation{}, ErrNoSelection
	}
	if s.Selection.Draft == "" {
		return s, types.Annotation{}, ErrEmptyDraft
	}
	store := s.Annotations.Clone()
	a, err := store.Update(s.Selection.ID, s.Selection.Draft)
	if err != nil {
		return s, types.Annotation{}, err
	}
	s.Annotations = store
	s.Selection = nil
	return s, a, nil
}

// Raster returns the processed overlay, falling back to the source image.
func (s State) Raster() image.Image {
	if s.Processed != nil {
		return s.Processed
	}
	return s.Source
}
