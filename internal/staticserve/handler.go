package staticserve

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"ipr-host/pkg/config"
)

// Handler serves files from the content root under the static policy:
// rewrite first, then extension filtering, then a literal file lookup with
// the mapped Content-Type. There is no index fallback.
type Handler struct {
	root     string
	policy   *Policy
	rewriter *Rewriter
}

// NewHandler builds the static handler for cfg.
func NewHandler(cfg config.StaticConfig) (*Handler, error) {
	rewriter, err := NewRewriter(cfg.RewriteRules)
	if err != nil {
		return nil, err
	}
	return &Handler{
		root:     cfg.Root,
		policy:   NewPolicy(cfg),
		rewriter: rewriter,
	}, nil
}

// Allowed reports whether the request path passes extension filtering,
// after rewrites. Filtering applies to every request, proxied ones included.
func (h *Handler) Allowed(reqPath string) bool {
	rewritten, redirect := h.rewriter.Apply(reqPath)
	if redirect {
		return true
	}
	return h.policy.Allowed(rewritten)
}

// Exists reports whether the request path resolves to a regular file under
// the content root. The front router uses this to decide between static
// serving and proxying.
func (h *Handler) Exists(reqPath string) bool {
	rewritten, redirect := h.rewriter.Apply(reqPath)
	if redirect {
		// Redirect rules are the static layer's to answer.
		return true
	}
	full, ok := h.resolve(rewritten)
	if !ok {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Path

	rewritten, redirect := h.rewriter.Apply(reqPath)
	if redirect {
		logrus.WithFields(logrus.Fields{
			"path":   reqPath,
			"target": rewritten,
		}).Info("Rewrite redirect")
		http.Redirect(w, r, rewritten, http.StatusFound)
		return
	}
	reqPath = rewritten

	if !h.policy.Allowed(reqPath) {
		logrus.WithField("path", reqPath).Warn("Request blocked by extension filtering")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	full, ok := h.resolve(reqPath)
	if !ok {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		logrus.WithError(err).WithField("path", full).Error("Failed to open static file")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		// Directories are not listed and not redirected anywhere.
		http.NotFound(w, r)
		return
	}

	if contentType := h.policy.ContentType(reqPath); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve maps a request path to a filesystem path inside the root,
// rejecting traversal out of it.
func (h *Handler) resolve(reqPath string) (string, bool) {
	// Cleaning a rooted path removes every ".." segment, so the prefix
	// check below is the only escape guard needed. Filenames that merely
	// contain dots, like report..v2.pdf, stay servable.
	clean := path.Clean("/" + reqPath)
	full := filepath.Join(h.root, filepath.FromSlash(clean))
	if full != h.root && !strings.HasPrefix(full, h.root+string(os.PathSeparator)) {
		return "", false
	}
	return full, true
}
