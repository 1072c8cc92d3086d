package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"time"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

const httpLogPrefix = "server:http"

// healthCheck is one named dependency probe reported by /health.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type healthOutput struct {
	Status    string            `json:"status"`
	Checks    map[string]bool   `json:"checks"`
	Errors    map[string]string `json:"errors,omitempty"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
}

type operationOutput struct {
	Name   string `json:"name"`
	Member string `json:"member,omitempty"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

type serviceOutput struct {
	Name       string            `json:"name"`
	Operations []operationOutput `json:"operations"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", handleReady)
	mux.HandleFunc("/services", s.handleServices)
	if s.rpc != nil {
		mux.Handle("/rpc", s.rpc)
	}
	return mux
}

func (s *Server) health(ctx context.Context) *healthOutput {
	out := &healthOutput{
		Status:    "healthy",
		Checks:    make(map[string]bool, len(s.checks)),
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, c := range s.checks {
		err := c.check(ctx)
		out.Checks[c.name] = err == nil
		if err != nil {
			out.Status = "unhealthy"
			if out.Errors == nil {
				out.Errors = make(map[string]string)
			}
			out.Errors[c.name] = err.Error()
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(describeServices(s.services))
}

func describeServices(defs []*nexus.ServiceDefinition) []serviceOutput {
	out := make([]serviceOutput, 0, len(defs))
	for _, def := range defs {
		svc := serviceOutput{Name: def.Name}
		for _, name := range def.OperationNames() {
			op := def.Operations[name]
			svc.Operations = append(svc.Operations, operationOutput{
				Name:   op.Name,
				Member: op.Member,
				Input:  typeLabel(op.InputType),
				Output: typeLabel(op.OutputType),
			})
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func typeLabel(t reflect.Type) string {
	if nexus.IsVoidType(t) {
		return "void"
	}
	return t.String()
}

// homePageTemplate is the HTML for the server home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Nexus Server</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Nexus Server</h1>
  <p class="meta">Requests on <code>{{.Subject}}</code>, operation store: {{.Store}}.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span> (up {{.Health.Uptime}})</p>
    {{range $name, $ok := .Health.Checks}}
    <p>{{$name}}: {{if $ok}}OK{{else}}<span class="error">Failed</span>{{end}}</p>
    {{end}}
  </section>

  <section>
    <h2>Services</h2>
    {{if not .Services}}
    <p>No services registered.</p>
    {{else}}
    {{range .Services}}
    <h3>{{.Name}}</h3>
    <table>
      <thead>
        <tr><th>Operation</th><th>Input</th><th>Output</th></tr>
      </thead>
      <tbody>
        {{range .Operations}}
        <tr><td>{{.Name}}</td><td>{{.Input}}</td><td>{{.Output}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
    {{end}}
  </section>
</body>
</html>
`

type homeData struct {
	Subject  string
	Store    string
	Health   *healthOutput
	Services []serviceOutput
}

// handleHome returns an HTTP handler for the home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Subject:  s.cfg.NexusSubject,
			Store:    "memory",
			Health:   s.health(ctx),
			Services: describeServices(s.services),
		}
		if s.cfg.UseDatabase() {
			data.Store = "postgres"
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", httpLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
