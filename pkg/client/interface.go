package client

import (
	"context"

	"github.com/menta2k/drawing-converter/pkg/types"
)

// VisionClient talks to a vision model server.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	QueryDimensions(ctx context.Context, model, prompt, imgB64 string) (*types.DimensionResult, error)
}
