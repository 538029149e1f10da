package recognition

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/drawing-converter/pkg/types"
)

func testImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 640, 480))
}

type stubRecognizer struct {
	out []types.Annotation
	err error
}

func (s stubRecognizer) Recognize(ctx context.Context, img image.Image, report Reporter) ([]types.Annotation, error) {
	emit(report, Preprocess)
	return s.out, s.err
}

func TestPipelineSeedResult(t *testing.T) {
	p := NewPipeline(NewMock(Delays{}), 0)

	var stages []StageName
	got, err := p.Run(context.Background(), testImage(), func(s Stage) { stages = append(stages, s.Name) })
	require.NoError(t, err)

	assert.Equal(t, []StageName{StagePreprocess, StageDetect, StageRecognize, StageConvert}, stages)
	require.Len(t, got, 5)

	ids := []int{1, 2, 3, 4, 5}
	imperial := []string{"2.50", "1.25", "0.375", "3.00", "0.125"}
	confidence := []int{98, 95, 78, 92, 82}
	metric := []string{"63.50", "31.75", "9.53", "76.20", "3.18"}
	for i, a := range got {
		assert.Equal(t, ids[i], a.ID)
		assert.Equal(t, imperial[i], a.Imperial)
		assert.Equal(t, confidence[i], a.Confidence)
		assert.Equal(t, metric[i], a.Metric)
		assert.Equal(t, types.InchUnit, a.Unit)
	}
}

func TestPipelineStatusStrings(t *testing.T) {
	p := NewPipeline(NewMock(Delays{}), 0)

	var statuses []string
	_, err := p.Run(context.Background(), testImage(), func(s Stage) { statuses = append(statuses, s.Status) })
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Preprocessing: Cleaning and enhancing image...",
		"Text Detection: Locating dimensional annotations...",
		"OCR: Recognising dimensional values...",
		"Conversion: Calculating metric values...",
	}, statuses)
}

func TestPipelineStageFailure(t *testing.T) {
	for _, stage := range []StageName{StagePreprocess, StageDetect, StageRecognize} {
		m := NewMock(Delays{})
		m.FailAt = stage
		p := NewPipeline(m, 0)

		var last StageName
		got, err := p.Run(context.Background(), testImage(), func(s Stage) { last = s.Name })
		assert.ErrorIs(t, err, ErrStageFailed, "stage %s", stage)
		assert.Nil(t, got)
		assert.Equal(t, stage, last, "run must stop at the failing stage")
	}
}

func TestPipelineCancelled(t *testing.T) {
	p := NewPipeline(NewMock(Delays{Preprocess: time.Minute}), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Run(ctx, testImage(), nil)
	assert.ErrorIs(t, err, ErrStageFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipelineNilImage(t *testing.T) {
	p := NewPipeline(NewMock(Delays{}), 0)
	_, err := p.Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrStageFailed)
}

func TestPipelineWrapsBackendErrors(t *testing.T) {
	p := NewPipeline(stubRecognizer{err: errors.New("connection refused")}, 0)
	_, err := p.Run(context.Background(), testImage(), nil)
	assert.ErrorIs(t, err, ErrStageFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPipelineRejectsDuplicateIDs(t *testing.T) {
	p := NewPipeline(stubRecognizer{out: []types.Annotation{{ID: 1, Imperial: "1"}, {ID: 1, Imperial: "2"}}}, 0)
	got, err := p.Run(context.Background(), testImage(), nil)
	assert.ErrorIs(t, err, ErrStageFailed)
	assert.Nil(t, got)
}

func TestPipelineRecomputesMetric(t *testing.T) {
	p := NewPipeline(stubRecognizer{out: []types.Annotation{{ID: 1, Imperial: "1", Metric: "bogus"}}}, 0)
	got, err := p.Run(context.Background(), testImage(), nil)
	require.NoError(t, err)
	assert.Equal(t, "25.40", got[0].Metric)
}

func TestSeedAnnotationsAreFresh(t *testing.T) {
	a := SeedAnnotations()
	a[0].Imperial = "changed"
	assert.Equal(t, "2.50", SeedAnnotations()[0].Imperial)
}

func TestDefaultDelays(t *testing.T) {
	d := DefaultDelays()
	assert.Equal(t, 800*time.Millisecond, d.Preprocess)
	assert.Equal(t, 1000*time.Millisecond, d.Detect)
	assert.Equal(t, 1200*time.Millisecond, d.Recognize)
	assert.Equal(t, 600*time.Millisecond, d.Convert)
}
