package dto

import "github.com/menta2k/drawing-converter/pkg/types"

type CreateSessionResponse struct {
	ID string `json:"id"`
}

type ProcessResponse struct {
	Processing bool   `json:"processing"`
	Status     string `json:"status"`
}

type ZoomRequest struct {
	Action string   `json:"action" validate:"omitempty,oneof=in out"`
	Zoom   *float64 `json:"zoom" validate:"omitempty,gt=0,lte=10"`
}

type ZoomResponse struct {
	Zoom        float64 `json:"zoom"`
	ZoomPercent int     `json:"zoom_percent"`
}

type SelectRequest struct {
	ID int `json:"id" validate:"required,gt=0"`
}

type DraftRequest struct {
	Value string `json:"value" validate:"max=64"`
}

type DraftResponse struct {
	Draft   string `json:"draft"`
	Preview string `json:"preview"`
}

// SaveRequest commits the open selection. A nil Value saves the current draft.
type SaveRequest struct {
	Value *string `json:"value" validate:"omitempty,max=64"`
}

type SaveResponse struct {
	Annotation types.Annotation `json:"annotation"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
