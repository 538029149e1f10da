package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/drawing-converter/pkg/types"
)

// ErrNoJSON is returned when a model response holds no JSON object.
var ErrNoJSON = errors.New("no valid JSON found in model response")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseDimensions decodes a model response into a DimensionResult. A bare
// JSON array is accepted as the dimension list.
func ParseDimensions(raw string) (*types.DimensionResult, error) {
	raw = SanitizeModelJSON(raw)

	var result types.DimensionResult
	switch {
	case strings.HasPrefix(raw, "{"):
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &result.Dimensions); err != nil {
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}
	default:
		return nil, ErrNoJSON
	}
	return &result, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a JSON response and keeps only the outermost object or array.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	open, closer := outermost(raw)
	if open != 0 {
		if start := strings.IndexByte(raw, open); start >= 0 {
			if end := strings.LastIndexByte(raw, closer); end > start {
				raw = raw[start : end+1]
			}
		}
	}
	return strings.TrimSpace(raw)
}

// outermost picks the bracket pair that opens first.
func outermost(raw string) (byte, byte) {
	obj := strings.IndexByte(raw, '{')
	arr := strings.IndexByte(raw, '[')
	switch {
	case obj < 0 && arr < 0:
		return 0, 0
	case arr < 0 || (obj >= 0 && obj < arr):
		return '{', '}'
	default:
		return '[', ']'
	}
}
