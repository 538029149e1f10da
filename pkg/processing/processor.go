package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotAnImage is returned when the payload is not an image.
	ErrNotAnImage = errors.New("not an image file")
	// ErrDecode is returned when an image payload cannot be decoded.
	ErrDecode = errors.New("image: unknown or unsupported format")
)

// Upload is a decoded user-selected image.
type Upload struct {
	Image       image.Image
	ContentType string
	Data        []byte
}

// Processor handles image loading and encoding
type Processor struct {
	maxBytes int64
}

// NewProcessor creates a new image processor. maxBytes limits how much is
// read from a single source; zero means 32 MiB.
func NewProcessor(maxBytes int64) *Processor {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Processor{maxBytes: maxBytes}
}

// DetectContentType sniffs the MIME type of data.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImageType reports whether a MIME type names an image.
func IsImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// ReadUpload reads r fully and decodes it. declaredType is the content type
// reported by the client; when empty the payload is sniffed. A declared or
// sniffed type outside image/* yields ErrNotAnImage.
func (p *Processor) ReadUpload(r io.Reader, declaredType string) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("failed to read image data: larger than %d bytes", p.maxBytes)
	}

	contentType := declaredType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = DetectContentType(data)
	}
	if !IsImageType(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
	}

	img, err := p.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Upload{Image: img, ContentType: contentType, Data: data}, nil
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (*Upload, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Drawing-Converter/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	return p.ReadUpload(resp.Body, resp.Header.Get("Content-Type"))
}

// LoadImage loads an image from a file path
func (p *Processor) LoadImage(path string) (*Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	return p.ReadUpload(f, "")
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (*Upload, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// Decode decodes an image from byte data with WebP support
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, ErrDecode
}

// PrepareImageForModel converts an image to base64 for sending to vision
// models. The image is downscaled so its long side is at most maxDim; the
// returned scale maps model coordinates back to source pixels.
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, float64, error) {
	scale := 1.0
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
				scale = float64(w) / float64(img.Bounds().Dx())
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
				scale = float64(h) / float64(img.Bounds().Dy())
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", 0, err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", 0, err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), scale, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}
