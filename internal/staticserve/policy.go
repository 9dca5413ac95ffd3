package staticserve

import (
	"path/filepath"
	"strings"

	"ipr-host/pkg/config"
)

// Policy implements request filtering and MIME mapping for static assets:
// an extension allow-list checked before anything touches disk, and an
// extension to Content-Type table for the response.
type Policy struct {
	mimeTypes     map[string]string
	allowed       map[string]bool
	allowUnlisted bool
}

// NewPolicy builds a Policy from configuration. Extensions are matched
// case-insensitively.
func NewPolicy(cfg config.StaticConfig) *Policy {
	mimeTypes := make(map[string]string, len(cfg.MimeTypes))
	for ext, mimeType := range cfg.MimeTypes {
		mimeTypes[strings.ToLower(ext)] = mimeType
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &Policy{
		mimeTypes:     mimeTypes,
		allowed:       allowed,
		allowUnlisted: cfg.AllowUnlisted,
	}
}

// Allowed reports whether the request path passes extension filtering.
// Listed extensions always pass; unlisted ones follow the default policy.
// Paths without an extension carry nothing to filter on and always pass.
func (p *Policy) Allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return true
	}
	if p.allowed[ext] {
		return true
	}
	return p.allowUnlisted
}

// ContentType returns the configured MIME type for the path's extension,
// or "" when no mapping exists and the server default should apply.
func (p *Policy) ContentType(path string) string {
	return p.mimeTypes[strings.ToLower(filepath.Ext(path))]
}
