package internal

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config is the full application configuration, read from YAML.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Events EventsConfig      `yaml:"events"`
	Neo4j  Neo4jConfig       `yaml:"neo4j"`
}

// Validate checks every section in file order and reports the first failure
// prefixed with its section key.
func (c *Config) Validate() error {
	sections := []struct {
		key string
		v   validation.Validatable
	}{
		{"app", &c.App},
		{"vault", &c.Vault},
		{"sqlite", &c.SQLite},
		{"auth", &c.Auth},
		{"events", &c.Events},
		{"neo4j", &c.Neo4j},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
	}
	return nil
}

// ApplicationConfig holds process-wide settings.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig is the API listener. An empty Host listens on all interfaces.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the listen address in host:port form.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the Markdown vault mirror settings. With Mirror off the
// database is the only copy of the notes.
type VaultConfig struct {
	Path   string `yaml:"path"`
	Mirror bool   `yaml:"mirror"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Mirror, validation.Required)),
	)
}

// SQLiteConfig locates the database file. It is created on first start.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig selects API access control. Mode "disabled" (the default) lets
// every request through; "token" requires Token as a bearer credential.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate fills in the default mode before checking.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(AuthModeDisabled, AuthModeToken)),
		validation.Field(&c.Token, validation.When(c.Mode == AuthModeToken,
			validation.Required.Error("token is empty but mode is token"))),
	)
}

// AuthEnabled reports whether requests must carry the token.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EventsConfig holds SSE broker settings.
type EventsConfig struct {
	// GraphThrottle is the minimum gap between graph.updated events.
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

var neo4jScheme = regexp.MustCompile(`^(bolt|neo4j)(\+s|\+ssc)?://`)

// Neo4jConfig holds the graph export target. An empty URI disables export.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Validate validates the Neo4j configuration.
func (c *Neo4jConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Match(neo4jScheme).Error("must be a bolt:// or neo4j:// URI")),
		validation.Field(&c.Username, validation.When(c.URI != "", validation.Required)),
	)
}

// Enabled returns true when an export target is configured.
func (c *Neo4jConfig) Enabled() bool {
	return c.URI != ""
}

// NewDefaultConfig returns the configuration used when no file is given.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./mindweave.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Events: EventsConfig{
			GraphThrottle: 2 * time.Second,
		},
		Neo4j: Neo4jConfig{
			Username: "neo4j",
			Database: "neo4j",
		},
	}
}
