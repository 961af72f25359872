package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

type mockChecker struct {
	healthErr error
}

func (m *mockChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func check(t *testing.T, srv *Server) int {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return rec.Code
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	if code := check(t, NewServer(nil, nil, nil)); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestHealthCheck_PingerSuccess(t *testing.T) {
	if code := check(t, NewServer(&mockPinger{}, &mockChecker{}, nil)); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestHealthCheck_PingerFailure(t *testing.T) {
	srv := NewServer(&mockPinger{pingErr: errors.New("connection refused")}, nil, nil)
	if code := check(t, srv); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestHealthCheck_CheckerFailure(t *testing.T) {
	srv := NewServer(&mockPinger{}, &mockChecker{healthErr: errors.New("policy not compiled")}, nil)
	if code := check(t, srv); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}
