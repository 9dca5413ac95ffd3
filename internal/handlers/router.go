package handlers

import (
	"net/http"
	"strings"

	"ipr-host/internal/staticserve"
	"ipr-host/internal/websocket"
	"ipr-host/pkg/config"
	"ipr-host/web"
)

// hostPrefix namespaces the shell's own endpoints so they never collide
// with the application's routes.
const hostPrefix = "/_host"

// NewRouter assembles the front server: shell endpoints under /_host,
// static files where the policy claims the path, everything else proxied
// to the application.
func NewRouter(cfg *config.Config, static *staticserve.Handler, appProxy http.Handler, api *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(hostPrefix+"/api/status", api.Status)
	mux.HandleFunc(hostPrefix+"/api/health", api.Health)
	mux.HandleFunc(hostPrefix+"/api/restart", api.Restart)
	mux.HandleFunc(hostPrefix+"/ws", websocket.Handler)
	mux.HandleFunc(hostPrefix+"/", dashboardHandler)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Extension filtering applies to every request, proxied or not.
		if !static.Allowed(r.URL.Path) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		// Static wins only when the path actually resolves to a file;
		// the application owns every other route.
		if static.Exists(r.URL.Path) {
			static.ServeHTTP(w, r)
			return
		}
		appProxy.ServeHTTP(w, r)
	})

	return AccessLog(CORS(cfg.CORS, mux))
}

// dashboardHandler serves the embedded status page and its assets.
func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, hostPrefix) {
	case "", "/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	case "/styles.css":
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(web.StylesCSS)
	default:
		http.NotFound(w, r)
	}
}
