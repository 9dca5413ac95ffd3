package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "application/pdf", cfg.Static.MimeTypes[".pdf"])
	assert.Equal(t, "application/javascript", cfg.Static.MimeTypes[".js"])
	assert.Equal(t, "text/css", cfg.Static.MimeTypes[".css"])
	assert.ElementsMatch(t, []string{".pdf", ".js", ".css"}, cfg.Static.AllowedExtensions)
	assert.Empty(t, cfg.Static.RewriteRules)
	assert.True(t, cfg.Static.AllowUnlisted)

	assert.False(t, cfg.CORS.Enforce)
	assert.Equal(t, 8000, cfg.App.Port)
	assert.True(t, cfg.App.ServerFlags)
	assert.Len(t, cfg.Bootstrap, 2)
	assert.Equal(t, "upgrade-pip", cfg.Bootstrap[0].Name)
	assert.Equal(t, "install-requirements", cfg.Bootstrap[1].Name)
}

func TestLoadConfigWithError_MissingFile(t *testing.T) {
	cfg, err := LoadConfigWithError(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().App.Port, cfg.App.Port)
	assert.True(t, filepath.IsAbs(cfg.Static.Root), "default static root must be resolved like a configured one")
}

func TestLoadConfigWithError_PartialOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
app:
  command: streamlit
  port: 8500
  ready_timeout: 5s
`)

	cfg, err := LoadConfigWithError(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8500, cfg.App.Port)
	assert.Equal(t, 5*time.Second, cfg.App.ReadyTimeout.Std())

	// Untouched sections keep their defaults.
	assert.Equal(t, "application/pdf", cfg.Static.MimeTypes[".pdf"])
	assert.Len(t, cfg.Bootstrap, 2)
}

func TestLoadConfigWithError_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := LoadConfigWithError(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoadConfigWithError_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad server port",
			content: "server:\n  port: 0\n",
			wantErr: "server.port",
		},
		{
			name:    "bad app port",
			content: "app:\n  command: streamlit\n  port: 70000\n",
			wantErr: "app.port",
		},
		{
			name:    "same ports",
			content: "server:\n  port: 8000\n",
			wantErr: "must differ",
		},
		{
			name:    "mime type without dot",
			content: "static:\n  root: static\n  mime_types:\n    pdf: application/pdf\n",
			wantErr: "static.mime_types",
		},
		{
			name:    "step without command",
			content: "bootstrap:\n  - name: broken\n",
			wantErr: "bootstrap[0].command",
		},
		{
			name:    "rule without target",
			content: "static:\n  root: static\n  rewrite_rules:\n    - name: r\n      pattern: ^/x$\n",
			wantErr: "rewrite_rules[0].target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfigWithError(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeConfig(t, "server:\n  read_timeout: bogus\n")
	_, err := LoadConfigWithError(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}
