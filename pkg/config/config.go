package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig configures the front HTTP server.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// RewriteRule transforms a request path before static lookup. Rules run in
// order; the first matching rule wins. With Redirect set the client gets a
// 302 to Target instead of an internal rewrite.
type RewriteRule struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Target   string `yaml:"target"`
	Redirect bool   `yaml:"redirect"`
}

// StaticConfig governs how static assets are served: which extensions pass
// request filtering, what Content-Type each maps to, and the rewrite rules
// applied before lookup (empty by default, so paths are served literally).
type StaticConfig struct {
	Root              string            `yaml:"root"`
	MimeTypes         map[string]string `yaml:"mime_types"`
	AllowedExtensions []string          `yaml:"allowed_extensions"`
	AllowUnlisted     bool              `yaml:"allow_unlisted"`
	RewriteRules      []RewriteRule     `yaml:"rewrite_rules"`
}

// CORSConfig controls cross-origin handling on the front server. With
// Enforce false (the default) the shell does not restrict origins at all,
// matching an app launched with CORS checks disabled.
type CORSConfig struct {
	Enforce        bool     `yaml:"enforce"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAge         int      `yaml:"max_age"`
}

// BootstrapStep is one setup command of the fail-fast pipeline.
type BootstrapStep struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// AppConfig describes the supervised application process. With ServerFlags
// set, the launch line gets "--server.port <port> --server.enableCORS false"
// appended, the way the original Streamlit start command was written.
type AppConfig struct {
	Name         string   `yaml:"name"`
	Command      string   `yaml:"command"`
	Args         []string `yaml:"args"`
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ServerFlags  bool     `yaml:"server_flags"`
	Workdir      string   `yaml:"workdir"`
	Requirements string   `yaml:"requirements"`
	ReadyTimeout Duration `yaml:"ready_timeout"`
}

// Config is the full ipr-host configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Static    StaticConfig    `yaml:"static"`
	CORS      CORSConfig      `yaml:"cors"`
	Bootstrap []BootstrapStep `yaml:"bootstrap"`
	App       AppConfig       `yaml:"app"`
}

// Default returns the configuration equivalent to the original deployment
// artifact: three MIME mappings, three allowed extensions, no rewrite rules,
// a pip upgrade + pip install pipeline and a Streamlit app on port 8000 with
// CORS not enforced.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Static: StaticConfig{
			Root: "static",
			MimeTypes: map[string]string{
				".pdf": "application/pdf",
				".js":  "application/javascript",
				".css": "text/css",
			},
			AllowedExtensions: []string{".pdf", ".js", ".css"},
			AllowUnlisted:     true,
		},
		CORS: CORSConfig{
			Enforce: false,
			MaxAge:  600,
		},
		Bootstrap: []BootstrapStep{
			{
				Name:    "upgrade-pip",
				Command: "python",
				Args:    []string{"-m", "pip", "install", "--upgrade", "pip"},
			},
			{
				Name:    "install-requirements",
				Command: "pip",
				Args:    []string{"install", "-r", "requirements.txt"},
			},
		},
		App: AppConfig{
			Name:         "ipr-app",
			Command:      "streamlit",
			Args:         []string{"run", "IPR_APP.py"},
			Host:         "127.0.0.1",
			Port:         8000,
			ServerFlags:  true,
			Requirements: "requirements.txt",
			ReadyTimeout: Duration(60 * time.Second),
		},
	}
}

// LoadConfig loads the configuration or exits the process.
func LoadConfig(filename string) *Config {
	cfg, err := LoadConfigWithError(filename)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// LoadConfigWithError reads filename over the defaults, so a partial file
// only overrides the sections it names. A missing file yields pure defaults.
func LoadConfigWithError(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
		}
	case os.IsNotExist(err):
		logrus.WithField("file", filename).Info("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Root is resolved once so a later workdir change cannot alter what
	// gets served. The default root gets the same treatment as a
	// configured one.
	absRoot, absErr := filepath.Abs(cfg.Static.Root)
	if absErr != nil {
		return nil, fmt.Errorf("failed to resolve static root: %w", absErr)
	}
	cfg.Static.Root = absRoot

	if validationErr := validateConfig(cfg); validationErr != nil {
		return nil, validationErr
	}

	return cfg, nil
}

type validationError struct {
	field string
	msg   string
}

func (e validationError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.msg)
}

func validateConfig(cfg *Config) error {
	type validator func() error

	validators := []validator{
		func() error { return validatePort("server.port", cfg.Server.Port) },
		func() error { return validatePort("app.port", cfg.App.Port) },
		func() error { return validateRequiredString("static.root", cfg.Static.Root) },
		func() error { return validateRequiredString("app.command", cfg.App.Command) },
		func() error { return validateMimeTypes(cfg.Static.MimeTypes) },
		func() error { return validateSteps(cfg.Bootstrap) },
		func() error { return validateRules(cfg.Static.RewriteRules) },
	}

	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}

	if cfg.Server.Port == cfg.App.Port {
		return validationError{field: "app.port", msg: "must differ from server.port"}
	}

	return nil
}

func validateRequiredString(field, value string) error {
	if value == "" {
		return validationError{field: field, msg: "is required"}
	}
	return nil
}

func validatePort(field string, port int) error {
	if port <= 0 || port > 65535 {
		return validationError{
			field: field,
			msg:   fmt.Sprintf("must be between 1 and 65535, got %d", port),
		}
	}
	return nil
}

func validateMimeTypes(mimeTypes map[string]string) error {
	for ext, mimeType := range mimeTypes {
		if ext == "" || ext[0] != '.' {
			return validationError{
				field: "static.mime_types",
				msg:   fmt.Sprintf("extension %q must start with a dot", ext),
			}
		}
		if mimeType == "" {
			return validationError{
				field: "static.mime_types",
				msg:   fmt.Sprintf("extension %q has an empty MIME type", ext),
			}
		}
	}
	return nil
}

func validateSteps(steps []BootstrapStep) error {
	for i, step := range steps {
		if step.Name == "" {
			return validationError{
				field: fmt.Sprintf("bootstrap[%d].name", i),
				msg:   "is required",
			}
		}
		if step.Command == "" {
			return validationError{
				field: fmt.Sprintf("bootstrap[%d].command", i),
				msg:   "is required",
			}
		}
	}
	return nil
}

func validateRules(rules []RewriteRule) error {
	for i, rule := range rules {
		if rule.Pattern == "" {
			return validationError{
				field: fmt.Sprintf("static.rewrite_rules[%d].pattern", i),
				msg:   "is required",
			}
		}
		if rule.Target == "" {
			return validationError{
				field: fmt.Sprintf("static.rewrite_rules[%d].target", i),
				msg:   "is required",
			}
		}
	}
	return nil
}
