// Package typeface provides the monospace faces used for labels and the
// export watermark.
package typeface

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

var (
	parseOnce sync.Once
	regular   *opentype.Font
	bold      *opentype.Font
	parseErr  error
)

func load() error {
	parseOnce.Do(func() {
		if regular, parseErr = opentype.Parse(gomono.TTF); parseErr != nil {
			return
		}
		bold, parseErr = opentype.Parse(gomonobold.TTF)
	})
	return parseErr
}

// Mono returns a regular monospace face of the given pixel size. Faces are
// not safe for concurrent use; create one per render.
func Mono(size float64) (font.Face, error) {
	return newFace(false, size)
}

// MonoBold returns a bold monospace face of the given pixel size.
func MonoBold(size float64) (font.Face, error) {
	return newFace(true, size)
}

func newFace(isBold bool, size float64) (font.Face, error) {
	if err := load(); err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	f := regular
	if isBold {
		f = bold
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
