package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Health(ctx context.Context) error {
	return m.err
}

func TestHealthHandler_Health(t *testing.T) {
	down := errors.New("connection refused")
	tests := []struct {
		name       string
		db, redis  HealthChecker
		wantStatus int
		wantState  string
		wantChecks map[string]string
	}{
		{
			name: "all healthy", db: &mockHealthChecker{}, redis: &mockHealthChecker{},
			wantStatus: http.StatusOK, wantState: "healthy",
			wantChecks: map[string]string{"postgres": "healthy", "redis": "healthy"},
		},
		{
			name: "postgres down", db: &mockHealthChecker{err: down}, redis: &mockHealthChecker{},
			wantStatus: http.StatusServiceUnavailable, wantState: "unhealthy",
			wantChecks: map[string]string{"postgres": "unhealthy: connection refused", "redis": "healthy"},
		},
		{
			name: "redis down", db: &mockHealthChecker{}, redis: &mockHealthChecker{err: down},
			wantStatus: http.StatusServiceUnavailable, wantState: "unhealthy",
			wantChecks: map[string]string{"postgres": "healthy", "redis": "unhealthy: connection refused"},
		},
		{
			name: "redis not configured", db: &mockHealthChecker{}, redis: nil,
			wantStatus: http.StatusOK, wantState: "healthy",
			wantChecks: map[string]string{"postgres": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.db, tt.redis)
			handler.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

			rr := httptest.NewRecorder()
			handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected json content type, got %q", ct)
			}
			var response HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if response.Status != tt.wantState {
				t.Fatalf("expected %q, got %q", tt.wantState, response.Status)
			}
			if response.Timestamp != "2026-01-02T03:04:05Z" {
				t.Fatalf("unexpected timestamp %q", response.Timestamp)
			}
			if len(response.Checks) != len(tt.wantChecks) {
				t.Fatalf("expected checks %v, got %v", tt.wantChecks, response.Checks)
			}
			for k, v := range tt.wantChecks {
				if response.Checks[k] != v {
					t.Fatalf("check %s: expected %q, got %q", k, v, response.Checks[k])
				}
			}
		})
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	healthy := NewHealthHandler(&mockHealthChecker{}, &mockHealthChecker{})
	rr := httptest.NewRecorder()
	healthy.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ready" {
		t.Fatalf("expected ready, got %d %q", rr.Code, rr.Body.String())
	}

	degraded := NewHealthHandler(&mockHealthChecker{}, &mockHealthChecker{err: errors.New("down")})
	rr = httptest.NewRecorder()
	degraded.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable || rr.Body.String() != "not ready" {
		t.Fatalf("expected not ready, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(&mockHealthChecker{err: errors.New("down")}, nil)
	rr := httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "alive" {
		t.Fatalf("expected alive regardless of dependencies, got %d %q", rr.Code, rr.Body.String())
	}
}
