package patchtx

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/viant/afs"
	"github.com/viant/patchtx/cache"
	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/policy"
	"github.com/viant/patchtx/service/matcher"
	"github.com/viant/patchtx/service/transaction"
	"github.com/viant/patchtx/tracing"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the engine configuration. The
// zero value of a nested field means "use the package default".
type Config struct {
	Window         int                 `json:"window" yaml:"window" validate:"gte=0,lte=1000"`
	MaxFiles       int                 `json:"maxFiles" yaml:"maxFiles" validate:"gt=0"`
	Forbidden      []string            `json:"forbidden,omitempty" yaml:"forbidden,omitempty" validate:"dive,glob"`
	AllowForbidden []string            `json:"allowForbidden,omitempty" yaml:"allowForbidden,omitempty" validate:"dive,glob"`
	Workers        int                 `json:"workers" yaml:"workers" validate:"gt=0"`
	Verify         *model.Verification `json:"verify,omitempty" yaml:"verify,omitempty"`
	LogOutputLimit int                 `json:"logOutputLimit" yaml:"logOutputLimit" validate:"gte=0"`
	Tracing        *tracing.Config     `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Cache          CacheConfig         `json:"cache" yaml:"cache"`
	Oracle         *OracleConfig       `json:"oracle,omitempty" yaml:"oracle,omitempty"`
}

// OracleConfig selects a session oracle: verifications run in one long-lived
// shell on Host (localhost or ssh://host:port) instead of a process per run.
type OracleConfig struct {
	Host        string            `json:"host" yaml:"host" validate:"required"`
	Credentials string            `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Dir         string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// CacheConfig controls the match result cache.
type CacheConfig struct {
	Enabled    bool  `json:"enabled" yaml:"enabled"`
	MaxEntries int64 `json:"maxEntries,omitempty" yaml:"maxEntries,omitempty" validate:"gte=0"`
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("glob", validateGlob)
}

func validateGlob(fl validator.FieldLevel) bool {
	pattern := strings.TrimPrefix(fl.Field().String(), "**/")
	if pattern == "" {
		return false
	}
	_, err := path.Match(pattern, "")
	return err == nil
}

// DefaultConfig returns a Config populated with the package defaults. Callers
// may modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Window:         matcher.DefaultWindow,
		MaxFiles:       policy.DefaultMaxFiles,
		Forbidden:      append([]string(nil), policy.DefaultForbidden...),
		Workers:        transaction.DefaultWorkers,
		LogOutputLimit: transaction.DefaultLogOutputLimit,
		Cache:          CacheConfig{MaxEntries: cache.DefaultMaxEntries},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Verify != nil && c.Verify.TimeoutMs < 0 {
		return fmt.Errorf("invalid config: verify.timeoutMs must be >= 0")
	}
	return nil
}

// Policy returns the guardrail policy the config describes.
func (c *Config) Policy() *policy.Policy {
	return policy.FromConfig(&policy.Config{
		MaxFiles:  c.MaxFiles,
		AllowList: c.AllowForbidden,
		BlockList: c.Forbidden,
	})
}

// LoadConfig reads a YAML (or JSON) config from URL; fields missing in the
// document keep their defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
