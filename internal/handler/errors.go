package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/service"
	"github.com/hiddenhill/api/pkg/response"
)

// NewValidator returns a validator reporting fields by their JSON names
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make(map[string]string)
		for _, e := range validationErrors {
			details[e.Field()] = e.Tag()
		}
		return details
	}
	return nil
}

// writeError maps service errors onto the HTTP error envelope
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return response.ValidationError(c, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "), nil)
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrNotReady):
		return response.Conflict(c, "Video not ready")
	case errors.Is(err, service.ErrDispatchUnavailable):
		return response.ServiceUnavailable(c, service.DispatchFailedMessage)
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrJobFinalized),
		errors.Is(err, service.ErrTaskIDConflict):
		return response.Conflict(c, err.Error())
	default:
		logger.ErrorWithFields("Request failed", map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"error":  err.Error(),
		})
		return response.ServiceError(c, "Internal Server Error")
	}
}

// ErrorHandler renders errors that escaped the handlers, including fiber's
// own 404 and 405 responses.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		logger.Errorf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	errCode := response.CodeServiceError
	if code == fiber.StatusNotFound {
		errCode = response.CodeNotFound
	}
	return response.Error(c, code, errCode, message, nil)
}
