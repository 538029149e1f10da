// Package drawingconverter reads the imperial dimension callouts on a
// technical drawing, converts them to millimetres, and draws both values
// back onto the drawing.
//
// Basic usage:
//
//	cfg := config.Default()
//	conv, err := drawingconverter.New(cfg, logger.NewNop())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := conv.ConvertFile(ctx, "bracket.png", []drawingconverter.Edit{{ID: 3, Value: "0.380"}})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := conv.ExportFile(sess, "./output")
//
// The package wires together:
//
// 1. Recognition (pkg/recognition, pkg/detection): the mock recognizer or a vision model backend
// 2. Annotations (pkg/annotation, pkg/units): the dimension list and exact inch to mm conversion
// 3. Overlay (pkg/overlay): source and converted labels drawn on the drawing
// 4. Export (pkg/export): the watermarked PNG download
// 5. Session (pkg/session): the state machine a user drives
package drawingconverter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/drawing-converter/internal/config"
	"github.com/menta2k/drawing-converter/internal/logger"
	"github.com/menta2k/drawing-converter/internal/utils"
	"github.com/menta2k/drawing-converter/pkg/client"
	"github.com/menta2k/drawing-converter/pkg/detection"
	"github.com/menta2k/drawing-converter/pkg/export"
	"github.com/menta2k/drawing-converter/pkg/llamacpp"
	"github.com/menta2k/drawing-converter/pkg/ollama"
	"github.com/menta2k/drawing-converter/pkg/overlay"
	"github.com/menta2k/drawing-converter/pkg/processing"
	"github.com/menta2k/drawing-converter/pkg/recognition"
	"github.com/menta2k/drawing-converter/pkg/session"
)

// Version of the drawing converter
const Version = "1.0.0"

const module = "converter"

// Edit is a correction applied after recognition.
type Edit struct {
	ID    int
	Value string
}

// Converter builds sessions that share one recognition backend.
type Converter struct {
	cfg  *config.Config
	log  logger.ILogger
	deps session.Deps
	opts session.Options
}

// New creates a Converter from configuration.
func New(cfg *config.Config, log logger.ILogger) (*Converter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	processor := processing.NewProcessor(int64(cfg.Server.BodyLimitMB) << 20)
	recognizer, err := NewRecognizer(cfg.Recognition, processor)
	if err != nil {
		return nil, err
	}

	policy := session.EditLowConfidence
	if cfg.Editor.AllowAnyConfidence {
		policy = session.EditAny
	}

	log.Info(module, "converter ready", map[string]interface{}{
		"backend": cfg.Recognition.Backend, "model": cfg.Recognition.Model, "edit_policy": policy.String(),
	})

	return &Converter{
		cfg: cfg,
		log: log,
		deps: session.Deps{
			Pipeline:  recognition.NewPipeline(recognizer, config.Duration(cfg.Recognition.StageDelaysMs.Convert)),
			Renderer:  overlay.NewRenderer(cfg.Editor.ConfidenceThreshold, cfg.Overlay.FontSize),
			Exporter:  export.New(export.Options{HeaderHeight: cfg.Export.HeaderHeight, Software: cfg.Export.Software, ScaleReference: cfg.Export.ScaleReference}),
			Processor: processor,
			Logger:    log,
		},
		opts: session.Options{
			Threshold: cfg.Editor.ConfidenceThreshold,
			Policy:    policy,
		},
	}, nil
}

// NewRecognizer returns the recognizer selected by cfg.Backend.
func NewRecognizer(cfg config.RecognitionConfig, p *processing.Processor) (recognition.Recognizer, error) {
	var vc client.VisionClient
	var err error

	switch cfg.Backend {
	case config.BackendMock, "":
		d := cfg.StageDelaysMs
		return recognition.NewMock(recognition.Delays{
			Preprocess: config.Duration(d.Preprocess),
			Detect:     config.Duration(d.Detect),
			Recognize:  config.Duration(d.Recognize),
		}), nil
	case config.BackendOllama:
		vc, err = ollama.NewClient(cfg.URL, cfg.Timeout())
	case config.BackendLlamaCpp:
		vc, err = llamacpp.NewClient(cfg.URL, cfg.Timeout())
	default:
		return nil, fmt.Errorf("unknown recognition backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Backend, err)
	}

	return detection.NewDetector(vc, p, detection.Options{
		Model:   cfg.Model,
		Format:  cfg.SendFormat,
		MaxDim:  cfg.SendSize,
		Quality: cfg.SendQuality,
	}), nil
}

// Config returns the configuration the converter was built from.
func (c *Converter) Config() *config.Config {
	return c.cfg
}

// NewSession creates an empty session.
func (c *Converter) NewSession(id string) *session.Session {
	return session.New(id, c.deps, c.opts)
}

// ConvertFile loads a drawing from a path or http(s) URL, runs recognition,
// and applies edits in order. It stops at the first edit that fails.
func (c *Converter) ConvertFile(ctx context.Context, source string, edits []Edit) (*session.Session, error) {
	up, err := c.deps.Processor.LoadImageSmart(source)
	if err != nil {
		return nil, err
	}

	s := c.NewSession(filepath.Base(source))
	s.SetImage(up.Image, up.ContentType)
	if err := s.Process(ctx); err != nil {
		return s, err
	}

	for _, e := range edits {
		if _, err := s.Edit(e.ID, e.Value); err != nil {
			return s, fmt.Errorf("edit %d: %w", e.ID, err)
		}
	}
	return s, nil
}

// ExportFile writes the session's export into dir and returns its path.
func (c *Converter) ExportFile(s *session.Session, dir string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	name, err := s.Export(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	return path, nil
}

// GetVersion returns the version string
func GetVersion() string {
	return Version
}
