package handler

import (
	"errors"
	"strconv"
	"strings"

	"cvalign/internal/delivery/http/dto"
	"cvalign/internal/delivery/http/middleware"
	"cvalign/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type validatable interface {
	Validate() error
}

// bindAndValidate decodes the JSON body into req and runs its struct tags.
func bindAndValidate(c fiber.Ctx, req validatable) error {
	if err := c.Bind().JSON(req); err != nil {
		return middleware.BadRequest("Invalid JSON body", nil, err)
	}
	if err := req.Validate(); err != nil {
		return middleware.BadRequest("Validation failed", fieldErrors(err), err)
	}
	return nil
}

func fieldErrors(err error) []dto.FieldError {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []dto.FieldError{{Message: err.Error()}}
	}
	out := make([]dto.FieldError, 0, len(ves))
	for _, fe := range ves {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, dto.FieldError{Field: fe.Namespace(), Message: msg})
	}
	return out
}

func parseQueryIntStrict(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, middleware.BadRequest("Invalid "+key, nil, err)
	}
	return v, nil
}

func mapUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	var ve *usecase.ValidationError
	switch {
	case errors.As(err, &ve):
		return middleware.BadRequest("Validation failed",
			[]dto.FieldError{{Field: ve.Field, Message: ve.Message}}, err)
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.BadRequest("Bad request", nil, err)
	case errors.Is(err, usecase.ErrNotFound):
		return middleware.NotFound("Not found", err)
	case errors.Is(err, usecase.ErrUnavailable):
		return middleware.Unavailable("Knowledge graph unavailable", err)
	default:
		return middleware.Internal(err)
	}
}
