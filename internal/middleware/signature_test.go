package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/daris/internal/services"
)

func TestHostedSignatureMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook", HostedSignature("whsec_test"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	body := []byte(`{"status":"paid"}`)

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, services.SignPayload("whsec_test", body))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "missing header is rejected")
}
