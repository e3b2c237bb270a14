package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

func TestSessionHandler_Current(t *testing.T) {
	cases := []struct {
		name      string
		sess      *domain.Session
		admin     bool
		wantAuth  bool
		wantAdmin bool
	}{
		{"anonymous", nil, true, false, false},
		{"user", &domain.Session{ID: "s1", UserID: "u1", Email: "a@x.com"}, false, true, false},
		{"admin", &domain.Session{ID: "s1", UserID: "u1", Email: "root@x.com"}, true, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/v1/session", "", tc.sess)
			if err := NewSessionHandler(stubAdmins{admin: tc.admin}, &stubNotifier{}).Current(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			var resp currentSessionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Authenticated != tc.wantAuth || resp.IsAdmin != tc.wantAdmin {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestSessionHandler_ToastsDrain(t *testing.T) {
	n := &stubNotifier{toasts: []domain.Toast{{Level: domain.ToastError, Title: "Sign in required"}}}
	h := NewSessionHandler(stubAdmins{}, n)

	c, rec := newContext(http.MethodGet, "/v1/toasts", "", nil)
	if err := h.Toasts(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp toastsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Toasts) != 1 {
		t.Fatalf("expected one toast, got %+v", resp)
	}

	c, rec = newContext(http.MethodGet, "/v1/toasts", "", nil)
	_ = h.Toasts(c)
	resp = toastsResponse{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Toasts) != 0 {
		t.Fatalf("expected drained queue, got %+v", resp)
	}
}

func TestReadinessHandler(t *testing.T) {
	ok := Dependency{Name: "mongodb", Ping: func(context.Context) error { return nil }}
	down := Dependency{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	cases := []struct {
		name string
		deps []Dependency
		code int
	}{
		{"all up", []Dependency{ok}, http.StatusOK},
		{"one down", []Dependency{ok, down}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/health/ready", "", nil)
			if err := NewReadinessHandler(tc.deps...).Readiness(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
		})
	}
}
