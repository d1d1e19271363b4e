package server

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/catalog-hub/catalog-hub/internal/logging"
)

func TestRouterSetsRequestID(t *testing.T) {
	app := newTestApp(t)
	var seen string
	app.Get("/ping", func(c fiber.Ctx) error {
		seen = RequestID(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if seen != reqID {
		t.Fatalf("handler saw request id %q, header carried %q", seen, reqID)
	}
}

func TestRouterRendersHandlerErrorAs500(t *testing.T) {
	app := newTestApp(t)
	app.Get("/boom", func(c fiber.Ctx) error {
		return errors.New("upstream exploded")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"error":"upstream exploded"}` {
		t.Fatalf("unexpected body %s", string(body))
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	app := newTestApp(t)
	app.Get("/panic", func(c fiber.Ctx) error {
		panic("handler bug")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"error"`) {
		t.Fatalf("expected error body, got %s", string(body))
	}
}

func TestRouterKeepsFiberStatusForUnknownRoutes(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestNewAppRequiresLogger(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app, err := NewApp(AppOptions{Logger: logging.NewDiscardLogger()})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
