// Package server assembles the HTTP surface: API routes, optional realtime
// and MCP endpoints, and the middleware chain around them.
package server

import (
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/kuitang/notes-api/internal/api"
	"github.com/kuitang/notes-api/internal/mcp"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/ratelimit"
	"github.com/kuitang/notes-api/internal/realtime"
)

// APIPrefix is the versioned mount point mirroring the root routes.
const APIPrefix = "/api/v1"

// Options selects the optional surfaces. A nil Limiter disables rate
// limiting and a nil Hub disables /ws.
type Options struct {
	Version    string
	BaseURL    string
	CORSOrigin string
	Limiter    *ratelimit.RateLimiter
	Hub        *realtime.Hub
	EnableMCP  bool
}

// Server owns the route table.
type Server struct {
	apiH   *api.Handler
	mcpSrv *mcp.Server
	opts   Options
}

// New builds a Server over svc.
func New(svc *notes.Service, opts Options) *Server {
	s := &Server{
		apiH: api.NewHandler(svc, opts.Version, opts.BaseURL),
		opts: opts,
	}
	if opts.EnableMCP {
		s.mcpSrv = mcp.NewServer(svc, opts.Version)
	}
	return s
}

// Router returns the fully wrapped HTTP handler.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	s.apiH.RegisterRoutes(mux, "")
	s.apiH.RegisterRoutes(mux, APIPrefix)
	s.apiH.RegisterDocs(mux)

	if s.opts.Hub != nil {
		mux.HandleFunc("GET /ws", realtime.HandleWebSocket(s.opts.Hub, s.opts.CORSOrigin))
	}
	if s.mcpSrv != nil {
		mountMCPRoute(mux, "/mcp", s.mcpSrv)
	}
	mux.HandleFunc("/", api.NotFoundHandler)

	var h http.Handler = mux
	if s.opts.Limiter != nil {
		h = ratelimit.RateLimitMiddleware(s.opts.Limiter, rateLimitKey)(h)
	}
	h = newCORS(s.opts.CORSOrigin).Handler(h)
	h = securityHeaders(h)
	h = recoverMiddleware(h)
	return withObservability(h)
}

// mountMCPRoute registers handler for every method on path so the MCP
// handler owns method negotiation.
func mountMCPRoute(mux *http.ServeMux, path string, handler http.Handler) {
	mux.Handle(path, handler)
}

// rateLimitKey exempts liveness and readiness probes.
func rateLimitKey(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)
	if path == "/health" || path == "/ready" {
		return ""
	}
	return ratelimit.ClientIP(r)
}

func newCORS(origin string) *cors.Cors {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "*"
	}
	return cors.New(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "Accept", "X-Request-Id", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders:   []string{"Location", "X-Request-Id", "Retry-After", "X-RateLimit-Remaining", "Mcp-Session-Id"},
		AllowCredentials: origin != "*",
		MaxAge:           600,
	})
}
