package session

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/drawing-converter/pkg/annotation"
	"github.com/menta2k/drawing-converter/pkg/recognition"
	"github.com/menta2k/drawing-converter/pkg/types"
)

func loaded(t *testing.T) State {
	t.Helper()
	s := Uploaded(NewState(), image.NewNRGBA(image.Rect(0, 0, 10, 10)), "image/png")
	s, err := RunStarted(s)
	require.NoError(t, err)
	s, err = RunCompleted(s, s.Generation, recognition.SeedAnnotations(), s.Source)
	require.NoError(t, err)
	return s
}

func TestNewState(t *testing.T) {
	s := NewState()
	assert.Equal(t, DefaultZoom, s.Zoom)
	assert.Zero(t, s.Annotations.Len())
	assert.Nil(t, s.Selection)
}

func TestUploadedResetsDerivedState(t *testing.T) {
	s := loaded(t)
	s, err := Select(s, 3, EditLowConfidence, types.ConfidenceThreshold)
	require.NoError(t, err)
	s = ZoomIn(s)

	next := Uploaded(s, image.NewNRGBA(image.Rect(0, 0, 5, 5)), "image/jpeg")
	assert.Zero(t, next.Annotations.Len())
	assert.Nil(t, next.Processed)
	assert.Nil(t, next.Selection)
	assert.Empty(t, next.Status)
	assert.Equal(t, s.Generation+1, next.Generation)
	assert.Equal(t, 1.25, next.Zoom, "zoom is a view setting and survives uploads")
	assert.Equal(t, 5, s.Annotations.Len(), "previous state must not be mutated")
}

func TestRunStartedGuards(t *testing.T) {
	_, err := RunStarted(NewState())
	assert.ErrorIs(t, err, ErrNoImage)

	s := Uploaded(NewState(), image.NewNRGBA(image.Rect(0, 0, 1, 1)), "image/png")
	s, err = RunStarted(s)
	require.NoError(t, err)
	assert.True(t, s.Processing)

	_, err = RunStarted(s)
	assert.ErrorIs(t, err, ErrRecognitionInProgress)
}

func TestStageEnteredIgnoresStaleRuns(t *testing.T) {
	s := Uploaded(NewState(), image.NewNRGBA(image.Rect(0, 0, 1, 1)), "image/png")
	s, _ = RunStarted(s)

	s = StageEntered(s, s.Generation, recognition.Detect)
	assert.Equal(t, recognition.Detect.Status, s.Status)

	s = StageEntered(s, s.Generation-1, recognition.Recognize)
	assert.Equal(t, recognition.Detect.Status, s.Status)
}

func TestRunFailedKeepsAnnotations(t *testing.T) {
	s := loaded(t)
	s, err := RunStarted(s)
	require.NoError(t, err)

	s = RunFailed(s, s.Generation)
	assert.False(t, s.Processing)
	assert.Equal(t, recognition.StatusError, s.Status)
	assert.Equal(t, 5, s.Annotations.Len())
}

func TestRunCompletedStale(t *testing.T) {
	s := Uploaded(NewState(), image.NewNRGBA(image.Rect(0, 0, 1, 1)), "image/png")
	s, _ = RunStarted(s)
	gen := s.Generation
	s = Uploaded(s, image.NewNRGBA(image.Rect(0, 0, 2, 2)), "image/png")

	next, err := RunCompleted(s, gen, recognition.SeedAnnotations(), nil)
	assert.ErrorIs(t, err, ErrStaleRun)
	assert.Zero(t, next.Annotations.Len())
}

func TestZoomBounds(t *testing.T) {
	s := NewState()
	for i := 0; i < 20; i++ {
		s = ZoomIn(s)
	}
	assert.Equal(t, MaxZoom, s.Zoom)
	for i := 0; i < 20; i++ {
		s = ZoomOut(s)
	}
	assert.Equal(t, MinZoom, s.Zoom)

	assert.Equal(t, 1.5, SetZoom(s, 1.4).Zoom)
	assert.Equal(t, 0.5, SetZoom(s, -3).Zoom)
	assert.Equal(t, MinZoom, SetZoom(s, 0.6).Zoom)
	assert.Equal(t, s.Zoom, SetZoom(s, nan()).Zoom)
}

func TestSelectLowConfidenceOnly(t *testing.T) {
	s := loaded(t)

	next, err := Select(s, 3, EditLowConfidence, types.ConfidenceThreshold)
	require.NoError(t, err)
	require.NotNil(t, next.Selection)
	assert.Equal(t, Selection{ID: 3, Draft: "0.375"}, *next.Selection)

	_, err = Select(s, 1, EditLowConfidence, types.ConfidenceThreshold)
	assert.ErrorIs(t, err, ErrNotSelectable)

	_, err = Select(s, 99, EditLowConfidence, types.ConfidenceThreshold)
	assert.ErrorIs(t, err, annotation.ErrNotFound)
}

func TestSelectAnyPolicy(t *testing.T) {
	s := loaded(t)
	next, err := Select(s, 1, EditAny, types.ConfidenceThreshold)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Selection.ID)
}

func TestSaveEdit(t *testing.T) {
	s := loaded(t)
	s, err := Select(s, 3, EditLowConfidence, types.ConfidenceThreshold)
	require.NoError(t, err)
	s, err = SetDraft(s, "0.500")
	require.NoError(t, err)

	before := s
	s, a, err := Save(s)
	require.NoError(t, err)
	assert.Equal(t, "12.70", a.Metric)
	assert.Equal(t, 100, a.Confidence)
	assert.Nil(t, s.Selection)

	old, _ := before.Annotations.Get(3)
	assert.Equal(t, "0.375", old.Imperial, "Save must not mutate the input state")
}

func TestSaveEmptyDraftKeepsSelection(t *testing.T) {
	s := loaded(t)
	s, _ = Select(s, 5, EditLowConfidence, types.ConfidenceThreshold)
	s, _ = SetDraft(s, "")

	next, _, err := Save(s)
	assert.ErrorIs(t, err, ErrEmptyDraft)
	assert.NotNil(t, next.Selection)
}

func TestCancelDoesNotMutate(t *testing.T) {
	s := loaded(t)
	s, _ = Select(s, 3, EditLowConfidence, types.ConfidenceThreshold)
	s, _ = SetDraft(s, "9.99")

	s = Cancel(s)
	assert.Nil(t, s.Selection)
	a, _ := s.Annotations.Get(3)
	assert.Equal(t, "0.375", a.Imperial)
	assert.Equal(t, 78, a.Confidence)
}

func TestNoSelection(t *testing.T) {
	s := loaded(t)
	_, err := SetDraft(s, "1")
	assert.ErrorIs(t, err, ErrNoSelection)
	_, _, err = Save(s)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func nan() float64 { return math.NaN() }
