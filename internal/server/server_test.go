package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainlink/trainlink/internal/domain"
)

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestCustomErrorHandlerMapsSentinels(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: customErrorHandler})

	routes := map[string]error{
		"/not-found": domain.ErrNotFound,
		"/forbidden": fmt.Errorf("plan 123: %w", domain.ErrForbidden),
		"/invalid":   domain.ErrValidation,
		"/conflict":  domain.ErrStateConflict,
		"/creds":     domain.ErrInvalidCredentials,
	}
	for path, err := range routes {
		routeErr := err
		app.Get(path, func(c *fiber.Ctx) error { return routeErr })
	}

	tests := []struct {
		path string
		code int
	}{
		{"/not-found", 404},
		{"/forbidden", 403},
		{"/invalid", 400},
		{"/conflict", 409},
		{"/creds", 401},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest("GET", tt.path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, tt.code, resp.StatusCode, tt.path)
		assert.NotEmpty(t, errorBody(t, resp))
	}
}

func TestCustomErrorHandlerHidesUnexpectedErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: customErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fmt.Errorf("failed to get user: %w", errors.New("connection refused"))
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "internal server error", errorBody(t, resp),
		"data-layer detail must not reach the caller")
}
