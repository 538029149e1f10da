package controller

import (
	"bytes"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/menta2k/drawing-converter/internal/dto"
	"github.com/menta2k/drawing-converter/internal/logger"
	"github.com/menta2k/drawing-converter/internal/sessionstore"
	"github.com/menta2k/drawing-converter/pkg/processing"
	"github.com/menta2k/drawing-converter/pkg/session"
)

const module = "http"

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Get(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	Process(ctx *fiber.Ctx) error
	Overlay(ctx *fiber.Ctx) error
	Zoom(ctx *fiber.Ctx) error
	Select(ctx *fiber.Ctx) error
	Draft(ctx *fiber.Ctx) error
	Save(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Export(ctx *fiber.Ctx) error
}

type sessionController struct {
	repo *sessionstore.Repository
	log  logger.ILogger
	// runs outlive the request that started them
	runCtx context.Context
}

func NewSessionController(runCtx context.Context, repo *sessionstore.Repository, log logger.ILogger) ISessionController {
	return &sessionController{repo: repo, log: log, runCtx: runCtx}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Post("/", c.Create)
	h.Get("/:id", c.Get)
	h.Delete("/:id", c.Delete)
	h.Post("/:id/image", c.Upload)
	h.Post("/:id/process", c.Process)
	h.Get("/:id/overlay", c.Overlay)
	h.Put("/:id/zoom", c.Zoom)
	h.Post("/:id/selection", c.Select)
	h.Put("/:id/selection/draft", c.Draft)
	h.Post("/:id/selection/save", c.Save)
	h.Delete("/:id/selection", c.Cancel)
	h.Get("/:id/export", c.Export)
}

func (c *sessionController) session(ctx *fiber.Ctx) (*session.Session, error) {
	s, ok := c.repo.Get(ctx.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return s, nil
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	s := c.repo.Create()
	c.log.Info(module, "session created", map[string]interface{}{"session": s.ID})
	return ctx.Status(fiber.StatusCreated).JSON(dto.CreateSessionResponse{ID: s.ID})
}

func (c *sessionController) Get(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(s.View())
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	if !c.repo.Delete(ctx.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *sessionController) Upload(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "error loading image")
	}
	defer f.Close()

	if err := s.Upload(f, fh.Header.Get(fiber.HeaderContentType)); err != nil {
		return err
	}
	return ctx.JSON(s.View())
}

func (c *sessionController) Process(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	if ctx.QueryBool("wait") {
		if err := s.Process(ctx.UserContext()); err != nil {
			return err
		}
		return ctx.JSON(s.View())
	}

	done, err := s.Start(c.runCtx)
	if err != nil {
		return err
	}
	// Outcome is recorded on the session; drain so the goroutine exits.
	go func() { <-done }()

	st := s.State()
	return ctx.Status(fiber.StatusAccepted).JSON(dto.ProcessResponse{Processing: st.Processing, Status: st.Status})
}

func (c *sessionController) Overlay(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	raster := s.Raster()
	if raster == nil {
		return fiber.NewError(fiber.StatusNotFound, "no image uploaded")
	}

	var buf bytes.Buffer
	if err := processing.EncodePNG(&buf, raster); err != nil {
		return err
	}
	ctx.Type("png")
	return ctx.Send(buf.Bytes())
}

func (c *sessionController) Zoom(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	var req dto.ZoomRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var z float64
	switch {
	case req.Zoom != nil:
		z = s.SetZoom(*req.Zoom)
	case req.Action == "in":
		z = s.ZoomIn()
	default:
		z = s.ZoomOut()
	}
	v := s.View()
	return ctx.JSON(dto.ZoomResponse{Zoom: z, ZoomPercent: v.ZoomPercent})
}

func (c *sessionController) Select(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	var req dto.SelectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := dto.ValidateRequest(&req); err != nil {
		return err
	}
	if err := s.Select(req.ID); err != nil {
		return err
	}
	return ctx.JSON(s.View())
}

func (c *sessionController) Draft(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	var req dto.DraftRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := dto.ValidateRequest(&req); err != nil {
		return err
	}
	preview, err := s.SetDraft(req.Value)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.DraftResponse{Draft: req.Value, Preview: preview})
}

func (c *sessionController) Save(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	var req dto.SaveRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := dto.ValidateRequest(&req); err != nil {
			return err
		}
	}
	if req.Value != nil {
		if _, err := s.SetDraft(*req.Value); err != nil {
			return err
		}
	}

	a, err := s.Save()
	if err != nil {
		return err
	}
	return ctx.JSON(dto.SaveResponse{Annotation: a})
}

func (c *sessionController) Cancel(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	s.Cancel()
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *sessionController) Export(ctx *fiber.Ctx) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	name, err := s.Export(&buf)
	if err != nil {
		return err
	}
	ctx.Attachment(name)
	return ctx.Send(buf.Bytes())
}
