package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"credentialing-backend/internal/metadata"
)

const saveFailedTitle = "Failed to save draft"

type Handler struct {
	drafts *DraftService
	logger *slog.Logger
}

func NewHandler(drafts *DraftService, logger *slog.Logger) *Handler {
	return &Handler{drafts: drafts, logger: logger}
}

type SaveResponse struct {
	Success    bool      `json:"success"`
	EmployeeID int64     `json:"employeeId"`
	Timestamp  time.Time `json:"timestamp"`
	Warnings   []Warning `json:"warnings,omitempty"`
}

type ErrorResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// SaveOwn handles POST /api/drafts
func (h *Handler) SaveOwn(c *fiber.Ctx) error {
	return h.save(c, ByOwner, 0)
}

// SaveByID handles PUT /api/drafts/:id
func (h *Handler) SaveByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, NotFoundError("Employee", c.Params("id")), saveFailedTitle)
	}
	return h.save(c, ByID, int64(id))
}

func (h *Handler) save(c *fiber.Ctx, mode AddressMode, id int64) error {
	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil || payload == nil {
		return respondError(c, ValidationError([]ErrorDetail{
			{Field: "body", Rule: "type", Message: "must be a JSON object"},
		}), saveFailedTitle)
	}

	result, err := h.drafts.SaveDraft(c.UserContext(), SaveRequest{
		Mode:       mode,
		EmployeeID: id,
		Payload:    payload,
		RequestID:  requestID(c),
	}, identity(c))
	if err != nil {
		return respondError(c, err, saveFailedTitle)
	}

	return c.JSON(SaveResponse{
		Success:    true,
		EmployeeID: result.EmployeeID,
		Timestamp:  result.Timestamp,
		Warnings:   result.Warnings,
	})
}

// GetOwn handles GET /api/drafts/me
func (h *Handler) GetOwn(c *fiber.Ctx) error {
	draft, err := h.drafts.LoadDraft(c.UserContext(), ByOwner, 0, identity(c))
	if err != nil {
		return respondError(c, err, "")
	}
	return c.JSON(fiber.Map{"success": true, "data": draft})
}

// GetByID handles GET /api/drafts/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, NotFoundError("Employee", c.Params("id")), "")
	}
	draft, err := h.drafts.LoadDraft(c.UserContext(), ByID, int64(id), identity(c))
	if err != nil {
		return respondError(c, err, "")
	}
	return c.JSON(fiber.Map{"success": true, "data": draft})
}

// ListKind handles GET /api/drafts/me/:kind
func (h *Handler) ListKind(c *fiber.Ctx) error {
	rows, err := h.drafts.ListCollection(c.UserContext(), c.Params("kind"), identity(c))
	if err != nil {
		return respondError(c, err, "")
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

func identity(c *fiber.Ctx) *metadata.Identity {
	ident, _ := c.Locals(metadata.IdentityKey).(*metadata.Identity)
	return ident
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

func respondError(c *fiber.Ctx, err error, internalTitle string) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError(err)
	}
	return c.Status(appErr.Status).JSON(NewErrorResponse(appErr, internalTitle))
}

// NewErrorResponse renders appErr in the public failure shape. Internal
// errors only ever carry the generic message.
func NewErrorResponse(appErr *AppError, internalTitle string) ErrorResponse {
	resp := ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	switch {
	case appErr.Code == "VALIDATION_FAILED":
		resp.Error = "Validation failed"
		resp.Message = ""
		resp.Details = appErr.Details
	case appErr.Status >= fiber.StatusInternalServerError:
		resp.Error = internalTitle
		if resp.Error == "" {
			resp.Error = utils.StatusMessage(appErr.Status)
		}
		resp.Message = InternalError(nil).Message
	default:
		resp.Error = utils.StatusMessage(appErr.Status)
	}
	return resp
}

// ErrorHandler is the app-wide fiber error handler. Middleware errors and
// anything a handler returns unrendered end up here.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *AppError
		if errors.As(err, &appErr) {
			if appErr.Status >= fiber.StatusInternalServerError {
				logger.ErrorContext(c.UserContext(), "request failed", "error", appErr, "path", c.Path())
			}
			return c.Status(appErr.Status).JSON(NewErrorResponse(appErr, ""))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error:   utils.StatusMessage(fiberErr.Code),
				Message: fiberErr.Message,
			})
		}

		logger.ErrorContext(c.UserContext(), "unhandled error", "error", err, "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse(InternalError(err), ""))
	}
}
