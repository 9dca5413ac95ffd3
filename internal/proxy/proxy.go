package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/sirupsen/logrus"

	"ipr-host/internal/state"
	"ipr-host/internal/types"
)

// AppProxy forwards non-static requests to the supervised application
// process, the way a platform host fronts an app it launched.
type AppProxy struct {
	proxy *httputil.ReverseProxy
	addr  string
}

// NewAppProxy builds a reverse proxy for the app at addr (host:port).
func NewAppProxy(addr string) *AppProxy {
	target := &url.URL{Scheme: "http", Host: addr}
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logrus.WithError(err).WithField("path", r.URL.Path).Warn("Proxy request failed")
		writeUnavailable(w, "Application unreachable")
	}
	return &AppProxy{proxy: rp, addr: addr}
}

func (p *AppProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Until the readiness probe has seen the port, answer for the app
	// instead of surfacing raw dial errors.
	if status := state.GetAppStatus(); status != types.AppReady {
		writeUnavailable(w, "Application is "+status)
		return
	}
	p.proxy.ServeHTTP(w, r)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(types.Response{
		Success: false,
		Message: message,
	})
}
