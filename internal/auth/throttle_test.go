package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleAllowsBurstThenRefills(t *testing.T) {
	th := NewThrottle(60, 2)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return clock }

	assert.True(t, th.allow("10.0.0.1"))
	assert.True(t, th.allow("10.0.0.1"))
	assert.False(t, th.allow("10.0.0.1"))
	assert.True(t, th.allow("10.0.0.2"), "budgets are per client")

	clock = clock.Add(time.Second)
	assert.True(t, th.allow("10.0.0.1"))
}

func TestThrottleMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/login", NewThrottle(1, 1).Handle, func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/login", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestDisabledThrottlePassesThrough(t *testing.T) {
	app := fiber.New()
	app.Post("/login", NewThrottle(0, 0).Handle, func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
}
