package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/morezero/nexus-handler/internal/config"
	"github.com/morezero/nexus-handler/internal/greeter"
	"github.com/morezero/nexus-handler/pkg/nexus"
)

const serverTestPrefix = "server:server_test"

// testServer returns a Server with the given health checks and the greeting
// service definition, for HTTP handler tests.
func testServer(t *testing.T, checks ...healthCheck) *Server {
	t.Helper()
	def, err := greeter.Definition()
	if err != nil {
		t.Fatalf("%s - greeter definition: %v", serverTestPrefix, err)
	}
	return &Server{
		cfg:      &config.Config{HealthCheckTimeout: 5 * time.Second, NexusSubject: "nexus.v1"},
		services: []*nexus.ServiceDefinition{def},
		checks:   checks,
		started:  time.Now(),
	}
}

func passing(name string) healthCheck {
	return healthCheck{name: name, check: func(context.Context) error { return nil }}
}

func failing(name string) healthCheck {
	return healthCheck{name: name, check: func(context.Context) error { return errors.New("connection refused") }}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.level).String(); got != tt.want {
			t.Errorf("%s - parseLogLevel(%q) = %s, want %s", serverTestPrefix, tt.level, got, tt.want)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     []healthCheck
		wantCode   int
		wantStatus string
		wantErrors []string
	}{
		{"no checks", nil, http.StatusOK, "healthy", nil},
		{"all passing", []healthCheck{passing("comms"), passing("database")}, http.StatusOK, "healthy", nil},
		{"database failing", []healthCheck{passing("comms"), failing("database")}, http.StatusServiceUnavailable, "unhealthy", []string{"database"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, tt.checks...)
			rec := httptest.NewRecorder()
			s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("%s - health got status %d, want %d", serverTestPrefix, rec.Code, tt.wantCode)
			}
			var out healthOutput
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatalf("%s - decode health: %v", serverTestPrefix, err)
			}
			if out.Status != tt.wantStatus {
				t.Errorf("%s - Status = %q, want %q", serverTestPrefix, out.Status, tt.wantStatus)
			}
			if len(out.Checks) != len(tt.checks) {
				t.Errorf("%s - %d checks reported, want %d", serverTestPrefix, len(out.Checks), len(tt.checks))
			}
			for _, name := range tt.wantErrors {
				if out.Checks[name] || out.Errors[name] == "" {
					t.Errorf("%s - check %s should be reported as failed", serverTestPrefix, name)
				}
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - ready got status %d, want 200", serverTestPrefix, rec.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode ready: %v", serverTestPrefix, err)
	}
	if out["status"] != "ready" {
		t.Errorf("%s - status = %q, want ready", serverTestPrefix, out["status"])
	}
}

func TestServicesHandler(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleServices(rec, httptest.NewRequest(http.MethodGet, "/services", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - services got status %d, want 200", serverTestPrefix, rec.Code)
	}

	var out []serviceOutput
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode services: %v", serverTestPrefix, err)
	}
	if len(out) != 1 || out[0].Name != "GreetingService" {
		t.Fatalf("%s - services = %+v, want GreetingService only", serverTestPrefix, out)
	}
	want := []operationOutput{
		{Name: "Ping", Member: "Ping", Input: "void", Output: "void"},
		{Name: "SayHello", Member: "SayHello", Input: "string", Output: "string"},
		{Name: "SayHelloAsync", Member: "SayHelloAsync", Input: "string", Output: "string"},
	}
	if len(out[0].Operations) != len(want) {
		t.Fatalf("%s - operations = %+v", serverTestPrefix, out[0].Operations)
	}
	for i, op := range want {
		if out[0].Operations[i] != op {
			t.Errorf("%s - operation %d = %+v, want %+v", serverTestPrefix, i, out[0].Operations[i], op)
		}
	}
}

func TestServicesHandler_MethodNotAllowed(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleServices(rec, httptest.NewRequest(http.MethodPost, "/services", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("%s - POST /services got status %d, want 405", serverTestPrefix, rec.Code)
	}
}

func TestHandleHome(t *testing.T) {
	s := testServer(t, passing("comms"), failing("database"))
	rec := httptest.NewRecorder()
	s.handleHome().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("%s - handleHome got status %d, want 200", serverTestPrefix, rec.Code)
	}
	if rec.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("%s - Content-Type = %q, want text/html", serverTestPrefix, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	for _, want := range []string{"unhealthy", "GreetingService", "SayHelloAsync", "nexus.v1", "memory", "Failed"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - home page should contain %q", serverTestPrefix, want)
		}
	}
}

func TestHandleHome_OnlyRoot(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleHome().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - handleHome(/other) got status %d, want 404", serverTestPrefix, rec.Code)
	}
}
