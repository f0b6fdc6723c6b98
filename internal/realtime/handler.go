package realtime

import (
	"net/http"
	"net/url"
	"strings"

	ws "github.com/coder/websocket"

	"github.com/kuitang/notes-api/internal/obs"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// websocket and runs them as Hub clients. allowedOrigin follows the CORS
// setting: "*" accepts any origin, otherwise only that origin's host.
func HandleWebSocket(hub *Hub, allowedOrigin string) http.HandlerFunc {
	opts := acceptOptions(allowedOrigin)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			obs.From(r.Context()).Warn("websocket_accept_failed", "pkg", "realtime", "error", err)
			return
		}

		obs.From(r.Context()).Debug("websocket_connected", "pkg", "realtime", "clients", hub.ClientCount()+1)
		NewClient(hub, conn).Run(r.Context())
		conn.CloseNow()
	}
}

func acceptOptions(allowedOrigin string) *ws.AcceptOptions {
	allowedOrigin = strings.TrimSpace(allowedOrigin)
	if allowedOrigin == "" || allowedOrigin == "*" {
		return &ws.AcceptOptions{InsecureSkipVerify: true}
	}
	host := allowedOrigin
	if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
		host = u.Host
	}
	return &ws.AcceptOptions{OriginPatterns: []string{host}}
}
