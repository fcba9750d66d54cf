package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func bearer(t *testing.T, secret, role string) string {
	t.Helper()
	token, err := NewService(secret, nil).signToken("user-1", role, accessTokenTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func statusOf(t *testing.T, app *fiber.App, path, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestJWTMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/private", JWTMiddleware("secret"), func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil || c.Locals("role") != "viewer" {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		return c.SendStatus(http.StatusOK)
	})

	if got := statusOf(t, app, "/private", ""); got != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", got)
	}
	if got := statusOf(t, app, "/private", "Bearer garbage"); got != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", got)
	}
	if got := statusOf(t, app, "/private", bearer(t, "secret", "viewer")); got != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", got)
	}
}

func TestRoleChecks(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) }
	app := fiber.New()
	app.Get("/chained", JWTMiddleware("secret"), RequireRole("admin"), ok)
	app.Get("/single", AdminOnly("secret", "admin"), ok)

	for _, path := range []string{"/chained", "/single"} {
		if got := statusOf(t, app, path, ""); got != http.StatusUnauthorized {
			t.Fatalf("%s anonymous: expected 401, got %d", path, got)
		}
		if got := statusOf(t, app, path, bearer(t, "secret", "viewer")); got != http.StatusForbidden {
			t.Fatalf("%s viewer: expected 403, got %d", path, got)
		}
		if got := statusOf(t, app, path, bearer(t, "secret", "admin")); got != http.StatusOK {
			t.Fatalf("%s admin: expected 200, got %d", path, got)
		}
	}
}

func TestBearerFromHeader(t *testing.T) {
	if bearerFromHeader("Bearer abc") != "abc" || bearerFromHeader("bearer abc") != "abc" {
		t.Fatalf("expected token to be extracted")
	}
	if bearerFromHeader("Basic abc") != "" || bearerFromHeader("abc") != "" {
		t.Fatalf("expected non-bearer headers to be ignored")
	}
}
