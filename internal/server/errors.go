package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/menta2k/drawing-converter/internal/dto"
	"github.com/menta2k/drawing-converter/internal/logger"
	"github.com/menta2k/drawing-converter/pkg/annotation"
	"github.com/menta2k/drawing-converter/pkg/export"
	"github.com/menta2k/drawing-converter/pkg/recognition"
	"github.com/menta2k/drawing-converter/pkg/session"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, session.ErrNotAnImage):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrImageRead):
		return fiber.StatusBadRequest
	case errors.Is(err, annotation.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrNotSelectable), errors.Is(err, session.ErrEmptyDraft):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoImage),
		errors.Is(err, session.ErrRecognitionInProgress),
		errors.Is(err, session.ErrStaleRun),
		errors.Is(err, session.ErrNoSelection),
		errors.Is(err, export.ErrNothingToExport):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// messageOf returns the text shown to the client. Failed runs show the
// same status line the session reports.
func messageOf(err error, code int) string {
	switch {
	case errors.Is(err, session.ErrRecognitionFailed):
		return recognition.StatusError
	case errors.Is(err, session.ErrImageRead):
		return session.ErrImageRead.Error()
	case code == fiber.StatusInternalServerError:
		return "internal server error"
	}
	return err.Error()
}

func errorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := statusOf(err)
		details := map[string]interface{}{
			"method": ctx.Method(), "path": ctx.Path(), "status": code, "error": err.Error(),
		}
		if code >= fiber.StatusInternalServerError {
			log.Error(module, "request failed", details)
		} else {
			log.Warn(module, "request rejected", details)
		}
		return ctx.Status(code).JSON(dto.ErrorResponse{Code: code, Message: messageOf(err, code)})
	}
}
