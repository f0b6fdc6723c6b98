package mcp

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	mcpDebugBodyLogLimitBytes = 8 * 1024
	maxMCPBodyBytes           = 1 << 20
)

// Server wraps the MCP server with notes handling
type Server struct {
	mcpServer   *mcp.Server
	handler     *Handler
	httpHandler http.Handler
}

type mcpResponseLogger struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        []byte
	truncated   bool
}

func newMCPResponseLogger(w http.ResponseWriter) *mcpResponseLogger {
	return &mcpResponseLogger{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           make([]byte, 0, 512),
	}
}

func (w *mcpResponseLogger) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *mcpResponseLogger) Write(p []byte) (int, error) {
	w.wroteHeader = true
	if len(w.body) < mcpDebugBodyLogLimitBytes {
		remaining := mcpDebugBodyLogLimitBytes - len(w.body)
		if len(p) <= remaining {
			w.body = append(w.body, p...)
		} else {
			w.body = append(w.body, p[:remaining]...)
			w.truncated = true
		}
	} else {
		w.truncated = true
	}
	return w.ResponseWriter.Write(p)
}

func (w *mcpResponseLogger) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// NewServer creates a new MCP server exposing the notes tools.
func NewServer(notesSvc *notes.Service, version string) *Server {
	handler := NewHandler(notesSvc)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "notes-api",
			Version: version,
		},
		nil,
	)

	for _, tool := range ToolDefinitions() {
		mcp.AddTool(mcpServer, tool, handler.createToolHandler(tool.Name))
	}
	registerPrompts(mcpServer)

	// Stateless: every request carries its own context, so no session state
	// survives between requests and the initialize handshake is optional.
	httpHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			JSONResponse: true,
			Stateless:    true,
		},
	)

	return &Server{
		mcpServer:   mcpServer,
		handler:     handler,
		httpHandler: httpHandler,
	}
}

// ServeHTTP implements http.Handler for the Streamable HTTP transport.
// Only POST (client messages) and DELETE (session end) are served; there is
// no server-initiated SSE stream.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		w.Header().Set("Allow", "POST, DELETE")
		writeJSONRPCError(w, http.StatusMethodNotAllowed, -32600, "Method not allowed")
		return
	}
	if sid := r.Header.Get("Mcp-Session-Id"); sid != "" && !isASCII(sid) {
		writeJSONRPCError(w, http.StatusBadRequest, -32600, "Invalid Mcp-Session-Id header")
		return
	}

	ctx := r.Context()
	logger := obs.From(ctx).With("pkg", "mcp")
	debug := logger.Enabled(ctx, slog.LevelDebug)

	var reqBody []byte
	if r.Method == http.MethodPost && r.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("mcp_request_too_large", "limit_bytes", maxMCPBodyBytes)
				writeJSONRPCError(w, http.StatusRequestEntityTooLarge, -32600, "Request body too large")
				return
			}
			logger.Warn("mcp_request_read_failed", "err", err)
			writeJSONRPCError(w, http.StatusBadRequest, -32700, "Failed to read request body")
			return
		}
		reqBody = body
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	if debug {
		logger.Debug("mcp_request",
			"method", r.Method,
			"path", r.URL.Path,
			"headers", formatMCPHeadersForLog(r.Header),
			"body", logutil.PayloadForLog(r.Header.Get("Content-Type"), reqBody, mcpDebugBodyLogLimitBytes, false),
		)
	}

	respLogger := newMCPResponseLogger(w)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("mcp_handler_panic", "panic", rec, "method", r.Method, "path", r.URL.Path)
			if !respLogger.wroteHeader {
				writeJSONRPCError(w, http.StatusInternalServerError, -32603, "Internal server error")
			}
		}
	}()

	s.httpHandler.ServeHTTP(respLogger, r)

	if !respLogger.wroteHeader {
		logger.Error("mcp_no_response", "method", r.Method, "path", r.URL.Path)
		writeJSONRPCError(w, http.StatusInternalServerError, -32603, "MCP handler returned without writing response")
		return
	}

	responseBody := logutil.PayloadForLog(respLogger.Header().Get("Content-Type"), respLogger.body, mcpDebugBodyLogLimitBytes, respLogger.truncated)
	if debug {
		logger.Debug("mcp_response", "status", respLogger.statusCode, "body", responseBody)
	}
	if respLogger.statusCode >= http.StatusBadRequest {
		logger.Warn("mcp_request_failed",
			"method", r.Method,
			"status", respLogger.statusCode,
			"response", responseBody,
		)
	}
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(marshalJSONRPCError(code, message))
}

func marshalJSONRPCError(code int, message string) []byte {
	type rpcError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	body := marshalAny(struct {
		JSONRPC string   `json:"jsonrpc"`
		Error   rpcError `json:"error"`
		ID      any      `json:"id"`
	}{JSONRPC: "2.0", Error: rpcError{Code: code, Message: message}})
	if body == nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal server error"},"id":null}`)
	}
	return body
}

func formatMCPHeadersForLog(headers http.Header) string {
	return logutil.HeadersForLog(headers)
}

// isASCII reports whether s is non-blank printable ASCII.
func isASCII(s string) bool {
	if s == "" {
		return false
	}
	blank := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e {
			return false
		}
		if c != ' ' {
			blank = false
		}
	}
	return !blank
}
