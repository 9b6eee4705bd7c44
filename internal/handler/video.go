package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/internal/service"
	"github.com/hiddenhill/api/pkg/response"
)

type VideoHandler struct {
	service   *service.VideoService
	validator *validator.Validate
}

func NewVideoHandler(svc *service.VideoService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/videos/generate
// @Summary      Submit video job
// @Description  Create a video and its job for a PubMed identifier and queue it
// @Tags         Videos
// @Accept       json
// @Produce      json
// @Param        request body model.VideoGenerateRequest true "Generate request"
// @Success      201 {object} model.JobCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /api/videos/generate [post]
func (h *VideoHandler) Generate(c *fiber.Ctx) error {
	var req model.VideoGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Generate(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, result)
}

// Status handles GET /api/videos/:job_id
// @Summary      Get job status
// @Description  Get the status and progress of a job with its video metadata
// @Tags         Videos
// @Produce      json
// @Param        job_id path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/videos/{job_id} [get]
func (h *VideoHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.GetStatus(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return writeError(c, err)
	}

	return response.OK(c, result)
}

// Download handles GET /api/videos/:job_id/download
// @Summary      Download video
// @Description  Redirect to the finished video
// @Tags         Videos
// @Param        job_id path string true "Job ID"
// @Success      302
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/videos/{job_id}/download [get]
func (h *VideoHandler) Download(c *fiber.Ctx) error {
	url, err := h.service.GetDownloadURL(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return writeError(c, err)
	}

	return response.Redirect(c, url)
}

// List handles GET /api/videos
// @Summary      List recent videos
// @Tags         Videos
// @Produce      json
// @Param        limit query int false "Maximum number of videos (default 50, max 200)"
// @Success      200 {object} model.VideoListResponse
// @Failure      400 {object} response.ErrorResponse
// @Router       /api/videos [get]
func (h *VideoHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultListLimit)
	if limit < 1 {
		return response.ValidationError(c, "limit must be a positive integer", nil)
	}

	result, err := h.service.ListVideos(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}

	return response.OK(c, result)
}
