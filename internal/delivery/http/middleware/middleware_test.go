package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"cvalign/internal/pkg/jwt"
	"cvalign/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, logs *bytes.Buffer, verifier TokenVerifier, h fiber.Handler) *fiber.App {
	t.Helper()
	logger := log.New(logs, "", 0)
	app := fiber.New()
	app.Use(NewAccessLogMiddleware(logger).Middleware())
	app.Use(NewErrorMiddleware(logger).Middleware())
	app.Get("/x", NewAuthMiddleware(verifier).Middleware(), h)
	return app
}

func decode(t *testing.T, app *fiber.App, header string) (int, response.SemanticResponse, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body response.SemanticResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body, resp.Header.Get(HeaderRequestID)
}

func TestErrorMiddleware_HidesInternalCause(t *testing.T) {
	var logs bytes.Buffer
	app := newApp(t, &logs, nil, func(fiber.Ctx) error {
		return NewAppError(fiber.StatusBadGateway, "upstream exploded", nil, errors.New("secret detail"))
	})

	status, body, rid := decode(t, app, "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, response.MessageInternalServerError, body.Message)
	assert.NotEmpty(t, rid)
	assert.Contains(t, logs.String(), "secret detail")
	assert.Contains(t, logs.String(), "rid="+rid)
}

func TestErrorMiddleware_KeepsServiceUnavailable(t *testing.T) {
	app := newApp(t, &bytes.Buffer{}, nil, func(fiber.Ctx) error {
		return Unavailable("Knowledge graph unavailable", errors.New("no artifact"))
	})
	status, body, _ := decode(t, app, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "Knowledge graph unavailable", body.Message)
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	var logs bytes.Buffer
	app := newApp(t, &logs, nil, func(fiber.Ctx) error { panic("boom") })
	status, _, _ := decode(t, app, "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, logs.String(), "status=panic")
}

func TestErrorMiddleware_FiberErrorDefaultsMessage(t *testing.T) {
	app := newApp(t, &bytes.Buffer{}, nil, func(fiber.Ctx) error {
		return &fiber.Error{Code: fiber.StatusNotFound}
	})
	status, body, _ := decode(t, app, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, response.MessageNotFound, body.Message)
}

func TestAuthMiddleware(t *testing.T) {
	svc := jwt.NewHMACService("test-secret", time.Minute)
	token, err := svc.GenerateAccessToken("user-7", "u@example.com")
	require.NoError(t, err)

	app := newApp(t, &bytes.Buffer{}, svc, func(c fiber.Ctx) error {
		return response.OK(c, UserID(c))
	})

	status, body, _ := decode(t, app, "Bearer "+token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user-7", body.Data)

	status, body, _ = decode(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body.Message)

	status, body, _ = decode(t, app, "Bearer nope")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid token", body.Message)

	status, _, _ = decode(t, app, "Basic "+token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAuthMiddleware_NilVerifierPassesThrough(t *testing.T) {
	app := newApp(t, &bytes.Buffer{}, nil, func(c fiber.Ctx) error {
		return response.OK(c, UserID(c))
	})
	status, body, _ := decode(t, app, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "", body.Data)
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("  bearer   abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = bearerToken("Bearer")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer    ")
	assert.False(t, ok)
}
