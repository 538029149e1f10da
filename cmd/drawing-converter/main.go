package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	drawingconverter "github.com/menta2k/drawing-converter"
	"github.com/menta2k/drawing-converter/internal/config"
	"github.com/menta2k/drawing-converter/internal/logger"
	"github.com/menta2k/drawing-converter/internal/server"
	"github.com/menta2k/drawing-converter/internal/utils"
	"github.com/menta2k/drawing-converter/pkg/annotation"
	"github.com/menta2k/drawing-converter/pkg/detection"
	"github.com/menta2k/drawing-converter/pkg/processing"
)

// editList collects repeated -edit id=value flags.
type editList []drawingconverter.Edit

func (e *editList) String() string {
	parts := make([]string, 0, len(*e))
	for _, ed := range *e {
		parts = append(parts, fmt.Sprintf("%d=%s", ed.ID, ed.Value))
	}
	return strings.Join(parts, ",")
}

func (e *editList) Set(v string) error {
	ed, err := parseEdit(v)
	if err != nil {
		return err
	}
	*e = append(*e, ed)
	return nil
}

func parseEdit(v string) (drawingconverter.Edit, error) {
	idStr, value, ok := strings.Cut(v, "=")
	if !ok {
		return drawingconverter.Edit{}, fmt.Errorf("edit %q: want id=value", v)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idStr))
	if err != nil || id < 1 {
		return drawingconverter.Edit{}, fmt.Errorf("edit %q: id must be a positive integer", v)
	}
	return drawingconverter.Edit{ID: id, Value: strings.TrimSpace(value)}, nil
}

func main() {
	var in, outDir, cfgPath, backend, url, model string
	var allowAny, writeJSON, serve, testVision bool
	var edits editList

	flag.StringVar(&in, "in", "", "input drawing path or URL (png/jpg/gif/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory")
	flag.StringVar(&cfgPath, "config", config.GetConfigPath(), "JSON config file (optional)")
	flag.StringVar(&backend, "backend", "", "recognition backend: mock, ollama or llamacpp")
	flag.StringVar(&url, "url", "", "vision server URL")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.Var(&edits, "edit", "correct a dimension after recognition, id=value (repeatable)")
	flag.BoolVar(&allowAny, "allow-any-edit", false, "allow editing dimensions at any confidence")
	flag.BoolVar(&writeJSON, "json", false, "also write annotations.json")
	flag.BoolVar(&serve, "serve", false, "run the HTTP server instead of converting a file")
	flag.BoolVar(&testVision, "test-vision", false, "ask the vision model to describe the input and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Recognition.Backend = backend
		case "url":
			cfg.Recognition.URL = url
		case "model":
			cfg.Recognition.Model = model
		case "allow-any-edit":
			cfg.Editor.AllowAnyConfidence = allowAny
		}
	})

	lg := newLogger(cfg.Log, serve)
	defer lg.Sync()

	conv, err := drawingconverter.New(cfg, lg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		runServer(ctx, cfg, conv, lg)
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in drawing.png|URL [-backend mock|ollama|llamacpp] [-edit 3=0.380] [-out outdir] [-json] | -serve", filepath.Base(os.Args[0]))
	}
	if err := checkInput(in); err != nil {
		log.Fatal(err)
	}

	if testVision {
		runTestVision(ctx, cfg, in)
		return
	}

	sess, err := conv.ConvertFile(ctx, in, edits)
	if sess == nil {
		log.Fatal(err)
	}
	if err != nil {
		// Recognition may have succeeded before an edit failed; keep going
		// so the user still gets the output.
		lg.Error("cli", "conversion incomplete", map[string]interface{}{"error": err})
		if len(sess.Annotations()) == 0 {
			_ = lg.Sync()
			os.Exit(1)
		}
	}

	path, err := conv.ExportFile(sess, outDir)
	if err != nil {
		log.Fatal(err)
	}

	store := sess.State().Annotations
	if writeJSON {
		if err := utils.WriteJSON(filepath.Join(outDir, "annotations.json"), store.All()); err != nil {
			log.Fatal(err)
		}
	}

	printSummary(store, cfg.Editor.ConfidenceThreshold)
	if info, err := os.Stat(path); err == nil {
		fmt.Printf("\nwrote %s (%s)\n", path, utils.FormatFileSize(info.Size()))
	}
}

// newLogger picks the log sinks. A server configured for file-only logging
// writes nothing to the console.
func newLogger(c config.LogConfig, serve bool) logger.ILogger {
	if serve && c.FileOnly && c.File != "" {
		return logger.NewFileLogger(c.File)
	}
	return logger.NewZapLogger(c.File, c.Production)
}

// checkInput rejects local paths that are missing or not a supported image.
// URLs are checked when fetched.
func checkInput(in string) error {
	if utils.IsURL(in) {
		return nil
	}
	if !utils.IsImageFile(in) {
		return fmt.Errorf("unsupported input type: %s", in)
	}
	if !utils.FileExists(in) {
		return fmt.Errorf("input not found: %s", in)
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, conv *drawingconverter.Converter, lg logger.ILogger) {
	srv := server.New(cfg, conv.NewSession, lg)
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			lg.Error("cli", "shutdown failed", map[string]interface{}{"error": err})
		}
	}()
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}

func runTestVision(ctx context.Context, cfg *config.Config, in string) {
	processor := processing.NewProcessor(0)
	rec, err := drawingconverter.NewRecognizer(cfg.Recognition, processor)
	if err != nil {
		log.Fatal(err)
	}
	det, ok := rec.(*detection.Detector)
	if !ok {
		log.Fatalf("-test-vision needs a vision backend, got %q", cfg.Recognition.Backend)
	}

	up, err := processor.LoadImageSmart(in)
	if err != nil {
		log.Fatal(err)
	}
	out, err := det.TestVision(ctx, up.Image)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)
}

func printSummary(store *annotation.Store, threshold int) {
	low := color.New(color.FgRed, color.Bold)
	ok := color.New(color.FgGreen)
	header := color.New(color.Bold)

	header.Printf("%-4s %-10s %-12s %s\n", "ID", "Imperial", "Metric", "Confidence")
	for _, a := range store.All() {
		line := fmt.Sprintf("%-4d %-10s %-12s %d%%", a.ID, a.Imperial+a.Unit, a.Metric+" mm", a.Confidence)
		if a.LowConfidence(threshold) {
			low.Println(line + "  review")
		} else {
			ok.Println(line)
		}
	}
	fmt.Printf("\n%d dimensions, %d flagged below %d%%\n", store.Len(), len(store.LowConfidence(threshold)), threshold)
}
