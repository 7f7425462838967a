package middleware

import (
	"errors"
	"log"

	"cvalign/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// AppError is a handler failure with the status and body it should produce.
// Cause is logged for 5xx and never sent to the client.
type AppError struct {
	StatusCode int
	Message    string
	Data       interface{}
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewAppError(statusCode int, message string, data interface{}, cause error) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Data: data, Cause: cause}
}

func BadRequest(message string, data interface{}, cause error) *AppError {
	return NewAppError(fiber.StatusBadRequest, message, data, cause)
}

func Unauthorized(message string, cause error) *AppError {
	return NewAppError(fiber.StatusUnauthorized, message, nil, cause)
}

func NotFound(message string, cause error) *AppError {
	return NewAppError(fiber.StatusNotFound, message, nil, cause)
}

func Unavailable(message string, cause error) *AppError {
	return NewAppError(fiber.StatusServiceUnavailable, message, nil, cause)
}

func Internal(cause error) *AppError {
	return NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, cause)
}

type ErrorMiddleware struct {
	logger *log.Logger
}

func NewErrorMiddleware(logger *log.Logger) *ErrorMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	return &ErrorMiddleware{logger: logger}
}

// Middleware turns returned errors and panics into the JSON envelope.
func (m *ErrorMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Printf("http status=panic rid=%s method=%s path=%s recovered=%v", RequestID(c), c.Method(), c.Path(), r)
				err = response.Write(c, fiber.StatusInternalServerError, response.MessageInternalServerError, nil)
			}
		}()

		if err = c.Next(); err == nil {
			return nil
		}

		appErr := toAppError(err)
		if appErr.StatusCode >= 500 {
			m.logger.Printf("http status=error rid=%s method=%s path=%s code=%d err=%v", RequestID(c), c.Method(), c.Path(), appErr.StatusCode, err)
		}
		return response.Write(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}
}

// toAppError hides internal details: every 5xx except 503 is reported as a
// bare 500.
func toAppError(err error) *AppError {
	var out *AppError
	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		out = &AppError{StatusCode: appErr.StatusCode, Message: appErr.Message, Data: appErr.Data}
	case errors.As(err, &fiberErr):
		out = &AppError{StatusCode: fiberErr.Code, Message: fiberErr.Message}
	default:
		return Internal(nil)
	}

	switch {
	case out.StatusCode <= 0:
		return Internal(nil)
	case out.StatusCode == fiber.StatusServiceUnavailable:
	case out.StatusCode >= 500:
		return Internal(nil)
	}
	if out.Message == "" {
		out.Message = response.DefaultMessage(out.StatusCode)
	}
	return out
}
