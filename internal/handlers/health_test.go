package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/models"
)

func decodeBody(t *testing.T, body io.Reader, v interface{}) {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to unmarshal response %s: %v", data, err)
	}
}

func TestHandler_Health(t *testing.T) {
	handler := New(logging.NewNop(), "opq-ingest", nil, nil)

	app := fiber.New()
	app.Get("/health", handler.Health)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	var health models.HealthResponse
	decodeBody(t, resp.Body, &health)

	if health.Status != "healthy" || health.Service != "opq-ingest" || health.Version != Version {
		t.Errorf("Unexpected health response %+v", health)
	}
	if health.Timestamp == "" {
		t.Error("Expected non-empty timestamp")
	}
}

func TestHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]ReadinessCheck
		wantStatus int
		wantBody   models.ReadyResponse
	}{
		{
			name:       "no checks",
			wantStatus: fiber.StatusOK,
			wantBody:   models.ReadyResponse{Status: "ready", Checks: map[string]string{}},
		},
		{
			name: "all ok",
			checks: map[string]ReadinessCheck{
				"store":    func(context.Context) error { return nil },
				"registry": func(context.Context) error { return nil },
			},
			wantStatus: fiber.StatusOK,
			wantBody:   models.ReadyResponse{Status: "ready", Checks: map[string]string{"store": "ok", "registry": "ok"}},
		},
		{
			name: "store down",
			checks: map[string]ReadinessCheck{
				"store":    func(context.Context) error { return errors.New("connection refused") },
				"registry": func(context.Context) error { return nil },
			},
			wantStatus: fiber.StatusServiceUnavailable,
			wantBody:   models.ReadyResponse{Status: "not_ready", Checks: map[string]string{"store": "connection refused", "registry": "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(logging.NewNop(), "opq-ingest", nil, tt.checks)
			app := fiber.New()
			app.Get("/ready", handler.Ready)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
			if err != nil {
				t.Fatalf("Failed to perform request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			var ready models.ReadyResponse
			decodeBody(t, resp.Body, &ready)
			if ready.Status != tt.wantBody.Status {
				t.Errorf("Expected status %q, got %q", tt.wantBody.Status, ready.Status)
			}
			for name, want := range tt.wantBody.Checks {
				if ready.Checks[name] != want {
					t.Errorf("Check %s: expected %q, got %q", name, want, ready.Checks[name])
				}
			}
		})
	}
}

func TestHandler_NotFound(t *testing.T) {
	handler := New(logging.NewNop(), "opq-ingest", nil, nil)

	app := fiber.New()
	app.Use(handler.NotFound)

	resp, err := app.Test(httptest.NewRequest("GET", "/nonexistent", nil))
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status %d, got %d", fiber.StatusNotFound, resp.StatusCode)
	}

	var errResp models.ErrorResponse
	decodeBody(t, resp.Body, &errResp)
	if errResp.Error.Code != "NOT_FOUND" || errResp.Error.Path != "/nonexistent" {
		t.Errorf("Unexpected error response %+v", errResp)
	}
}
