package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quam/internal/auth"
	"github.com/yourusername/quam/internal/config"
	"github.com/yourusername/quam/internal/jobs"
)

type emptyService struct{}

func (emptyService) StartJob(ctx context.Context, url, language string) (string, error) {
	return "j1", nil
}

func (emptyService) CancelJob(jobID string) (jobs.Snapshot, error) {
	return jobs.Snapshot{}, jobs.ErrNotFound
}

func (emptyService) GetJob(jobID string) (jobs.Snapshot, error) {
	return jobs.Snapshot{}, jobs.ErrNotFound
}

func (emptyService) ListJobs() []jobs.Snapshot {
	return nil
}

func TestRouterWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{CORSAllowedOrigins: "*"}
	router := newRouter(cfg, auth.NewManager(auth.Credentials{}), emptyService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected health status: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcribe-job", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("jobs should be reachable without auth, got %d", rec.Code)
	}
}

func TestRouterRequiresLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{CORSAllowedOrigins: "https://app.example.com", SessionSecret: "secret"}
	router := newRouter(cfg, auth.NewManager(auth.Credentials{Username: "admin", PasswordHash: "x"}), emptyService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcribe-job", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{CORSAllowedOrigins: "https://app.example.com, https://other.example.com"}
	router := newRouter(cfg, auth.NewManager(auth.Credentials{}), emptyService{})

	req := httptest.NewRequest(http.MethodOptions, "/transcribe-job", nil)
	req.Header.Set("Origin", "https://other.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://other.example.com" {
		t.Fatalf("unexpected allow origin: %q", got)
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" https://a.example.com ,, https://b.example.com")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", got)
	}
}
