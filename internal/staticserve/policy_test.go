package staticserve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ipr-host/pkg/config"
)

func defaultStaticConfig() config.StaticConfig {
	return config.StaticConfig{
		Root: "/srv/static",
		MimeTypes: map[string]string{
			".pdf": "application/pdf",
			".js":  "application/javascript",
			".css": "text/css",
		},
		AllowedExtensions: []string{".pdf", ".js", ".css"},
		AllowUnlisted:     true,
	}
}

func TestPolicyContentType(t *testing.T) {
	policy := NewPolicy(defaultStaticConfig())

	tests := []struct {
		path string
		want string
	}{
		{"/report.pdf", "application/pdf"},
		{"/assets/app.js", "application/javascript"},
		{"/theme/site.css", "text/css"},
		{"/REPORT.PDF", "application/pdf"},
		{"/data.json", ""},
		{"/plain", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ContentType(tt.path))
		})
	}
}

func TestPolicyAllowed_DefaultAllow(t *testing.T) {
	policy := NewPolicy(defaultStaticConfig())

	assert.True(t, policy.Allowed("/report.pdf"))
	assert.True(t, policy.Allowed("/app.JS"))
	// Host default policy lets unlisted extensions through.
	assert.True(t, policy.Allowed("/data.json"))
	assert.True(t, policy.Allowed("/no-extension"))
}

func TestPolicyAllowed_DefaultDeny(t *testing.T) {
	cfg := defaultStaticConfig()
	cfg.AllowUnlisted = false
	policy := NewPolicy(cfg)

	// The three listed extensions always pass.
	assert.True(t, policy.Allowed("/report.pdf"))
	assert.True(t, policy.Allowed("/app.js"))
	assert.True(t, policy.Allowed("/site.css"))

	assert.False(t, policy.Allowed("/data.json"))
	assert.False(t, policy.Allowed("/secrets.env"))
	// No extension means nothing to filter on.
	assert.True(t, policy.Allowed("/no-extension"))
}

func TestRewriterEmptyIsIdentity(t *testing.T) {
	rw, err := NewRewriter(nil)
	assert.NoError(t, err)
	assert.True(t, rw.Empty())

	for _, path := range []string{"/", "/report.pdf", "/deep/nested/app.js", "/anything"} {
		got, redirect := rw.Apply(path)
		assert.Equal(t, path, got, "empty rule list must not touch %s", path)
		assert.False(t, redirect)
	}
}

func TestRewriterOrderedRules(t *testing.T) {
	rw, err := NewRewriter([]config.RewriteRule{
		{Name: "legacy-js", Pattern: `^/old/(.*)\.js$`, Target: "/assets/$1.js"},
		{Name: "catch", Pattern: `^/old/`, Target: "/archive/", Redirect: true},
	})
	assert.NoError(t, err)

	got, redirect := rw.Apply("/old/app.js")
	assert.Equal(t, "/assets/app.js", got)
	assert.False(t, redirect, "first matching rule wins")

	got, redirect = rw.Apply("/old/report.pdf")
	assert.Equal(t, "/archive/", got)
	assert.True(t, redirect)

	got, redirect = rw.Apply("/current/app.js")
	assert.Equal(t, "/current/app.js", got)
	assert.False(t, redirect)
}

func TestRewriterInvalidPattern(t *testing.T) {
	_, err := NewRewriter([]config.RewriteRule{
		{Name: "broken", Pattern: "([", Target: "/x"},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}
