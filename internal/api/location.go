package api

import (
	"net/http"
	"net/url"
	"strings"
)

// noteURL is the absolute Location of a created note. It stays under the
// collection the request addressed, so a POST to /api/v1/notes answers with
// /api/v1/notes/{id}.
func (h *Handler) noteURL(r *http.Request, id string) string {
	collection := strings.TrimSuffix(r.URL.Path, "/")
	return requestOrigin(r, h.baseURL) + collection + "/" + url.PathEscape(id)
}

// requestOrigin returns scheme://host for r. X-Forwarded-Proto wins over the
// connection's own scheme when it names http or https. A request without a
// Host falls back to the configured base URL.
func requestOrigin(r *http.Request, baseURL string) string {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	switch proto = strings.ToLower(strings.TrimSpace(proto)); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme + "://" + host
}
