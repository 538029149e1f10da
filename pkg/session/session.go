package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/menta2k/drawing-converter/pkg/export"
	"github.com/menta2k/drawing-converter/pkg/overlay"
	"github.com/menta2k/drawing-converter/pkg/processing"
	"github.com/menta2k/drawing-converter/pkg/recognition"
	"github.com/menta2k/drawing-converter/pkg/types"
	"github.com/menta2k/drawing-converter/pkg/units"
)

const module = "session"

// Logger is the subset of the application logger a session writes to.
type Logger interface {
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

// Deps are the collaborators a session drives.
type Deps struct {
	Pipeline  *recognition.Pipeline
	Renderer  *overlay.Renderer
	Exporter  *export.Exporter
	Processor *processing.Processor
	Logger    Logger
}

// Options configures editing behaviour.
type Options struct {
	Threshold int
	Policy    EditPolicy
}

// Session is one user's editing session. All methods are safe for
// concurrent use; at most one recognition run is in flight at a time.
type Session struct {
	ID      string
	Created time.Time

	mu    sync.Mutex
	state State
	deps  Deps
	opts  Options

	// set while a run goroutine is alive
	cancel  context.CancelFunc
	running chan struct{}
}

// New creates an empty session.
func New(id string, deps Deps, opts Options) *Session {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Processor == nil {
		deps.Processor = processing.NewProcessor(0)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = types.ConfidenceThreshold
	}
	return &Session{
		ID:      id,
		Created: time.Now(),
		state:   NewState(),
		deps:    deps,
		opts:    opts,
	}
}

// Options returns the editing options of the session.
func (s *Session) Options() Options {
	return s.opts
}

// Upload reads and decodes an image and makes it the session's source.
// On error the session is unchanged.
func (s *Session) Upload(r io.Reader, contentType string) error {
	up, err := s.deps.Processor.ReadUpload(r, contentType)
	if err != nil {
		s.deps.Logger.Warn(module, "upload rejected", map[string]interface{}{"session": s.ID, "error": err.Error()})
		if errors.Is(err, ErrNotAnImage) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrImageRead, err)
	}
	s.SetImage(up.Image, up.ContentType)
	return nil
}

// SetImage makes an already decoded image the session's source. A run in
// flight is cancelled and has exited by the time SetImage returns.
func (s *Session) SetImage(img image.Image, contentType string) {
	s.mu.Lock()
	s.state = Uploaded(s.state, img, contentType)
	gen := s.state.Generation
	s.mu.Unlock()

	s.Close()

	b := img.Bounds()
	s.deps.Logger.Info(module, "image uploaded", map[string]interface{}{
		"session": s.ID, "width": b.Dx(), "height": b.Dy(), "content_type": contentType, "generation": gen,
	})
}

// Close cancels the run in flight, if any, and waits for it to exit.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, running := s.cancel, s.running
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-running
}

// Process runs recognition synchronously.
func (s *Session) Process(ctx context.Context) error {
	ctx, gen, img, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer s.release()
	return s.run(ctx, gen, img)
}

// Start begins a recognition run in the background. The returned channel
// receives the run's result and is then closed.
func (s *Session) Start(ctx context.Context) (<-chan error, error) {
	ctx, gen, img, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- s.run(ctx, gen, img)
		s.release()
		close(done)
	}()
	return done, nil
}

// begin claims the session's single run slot. Callers release it after
// the run's result has been delivered.
func (s *Session) begin(ctx context.Context) (context.Context, uint64, image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		return nil, 0, nil, ErrRecognitionInProgress
	}
	next, err := RunStarted(s.state)
	if err != nil {
		return nil, 0, nil, err
	}
	s.state = next

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = make(chan struct{})
	return ctx, next.Generation, next.Source, nil
}

func (s *Session) release() {
	s.mu.Lock()
	cancel, running := s.cancel, s.running
	s.cancel, s.running = nil, nil
	s.mu.Unlock()

	cancel()
	close(running)
}

func (s *Session) run(ctx context.Context, gen uint64, img image.Image) error {
	started := time.Now()
	s.deps.Logger.Info(module, "recognition started", map[string]interface{}{"session": s.ID, "generation": gen})

	anns, err := s.deps.Pipeline.Run(ctx, img, func(st recognition.Stage) {
		s.mu.Lock()
		s.state = StageEntered(s.state, gen, st)
		s.mu.Unlock()
		s.deps.Logger.Info(module, "stage entered", map[string]interface{}{"session": s.ID, "stage": string(st.Name)})
	})
	var processed image.Image
	if err == nil {
		processed, err = s.deps.Renderer.Render(img, anns)
	}
	if err != nil {
		s.mu.Lock()
		s.state = RunFailed(s.state, gen)
		s.mu.Unlock()
		s.deps.Logger.Error(module, "recognition failed", map[string]interface{}{"session": s.ID, "error": err.Error()})
		return fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}

	s.mu.Lock()
	next, err := RunCompleted(s.state, gen, anns, processed)
	s.state = next
	s.mu.Unlock()
	if err != nil {
		s.deps.Logger.Warn(module, "recognition result discarded", map[string]interface{}{"session": s.ID, "error": err.Error()})
		return err
	}

	s.deps.Logger.Info(module, "recognition complete", map[string]interface{}{
		"session": s.ID, "annotations": len(anns), "elapsed_ms": time.Since(started).Milliseconds(),
	})
	return nil
}

// Select opens the editor on an annotation.
func (s *Session) Select(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Select(s.state, id, s.opts.Policy, s.opts.Threshold)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// SetDraft updates the value being edited and returns its converted preview.
func (s *Session) SetDraft(value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := SetDraft(s.state, value)
	if err != nil {
		return "", err
	}
	s.state = next
	return units.ToMetric(value), nil
}

// Cancel closes the editor without saving.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.state = Cancel(s.state)
	s.mu.Unlock()
}

// Save commits the draft and re-renders the overlay.
func (s *Session) Save() (types.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, a, err := Save(s.state)
	if err != nil {
		return types.Annotation{}, err
	}
	processed, err := s.deps.Renderer.Render(next.Source, next.Annotations.All())
	if err != nil {
		return types.Annotation{}, err
	}
	next.Processed = processed
	s.state = next

	s.deps.Logger.Info(module, "annotation edited", map[string]interface{}{
		"session": s.ID, "id": a.ID, "imperial": a.Imperial, "metric": a.Metric,
	})
	return a, nil
}

// Edit selects an annotation, sets its value and saves it in one step.
func (s *Session) Edit(id int, value string) (types.Annotation, error) {
	if err := s.Select(id); err != nil {
		return types.Annotation{}, err
	}
	if _, err := s.SetDraft(value); err != nil {
		return types.Annotation{}, err
	}
	a, err := s.Save()
	if err != nil {
		s.Cancel()
	}
	return a, err
}

// ZoomIn steps the zoom up and returns the new factor.
func (s *Session) ZoomIn() float64 {
	return s.zoom(ZoomIn)
}

// ZoomOut steps the zoom down and returns the new factor.
func (s *Session) ZoomOut() float64 {
	return s.zoom(ZoomOut)
}

// SetZoom sets the zoom factor and returns the value applied.
func (s *Session) SetZoom(z float64) float64 {
	return s.zoom(func(st State) State { return SetZoom(st, z) })
}

func (s *Session) zoom(f func(State) State) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = f(s.state)
	return s.state.Zoom
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Annotations = st.Annotations.Clone()
	return st
}

// Annotations returns the current annotations in order.
func (s *Session) Annotations() []types.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Annotations.All()
}

// Raster returns the image currently on display, or nil.
func (s *Session) Raster() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Raster()
}

// Export writes the watermarked overlay as PNG and returns its filename.
// It returns export.ErrNothingToExport when no overlay has been rendered.
func (s *Session) Export(w io.Writer) (string, error) {
	s.mu.Lock()
	processed := s.state.Processed
	s.mu.Unlock()

	name, err := s.deps.Exporter.Write(w, processed)
	if err != nil {
		return "", err
	}
	s.deps.Logger.Info(module, "drawing exported", map[string]interface{}{"session": s.ID, "filename": name})
	return name, nil
}
