package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a configuration value cannot be used.
// It is the only error class that aborts a run before any input is read.
var ErrInvalidConfig = errors.New("invalid configuration")

type LoggingCfg struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	RunLog      string `mapstructure:"run_log"`
}

// ThresholdsCfg holds the anomaly thresholds used by the diagnostics post-pass.
type ThresholdsCfg struct {
	ChattyEntityLogins int     `mapstructure:"chatty_entity_logins"`
	ChurnEntities      int     `mapstructure:"churn_entities"`
	SingletonRatio     float64 `mapstructure:"singleton_ratio"`
	P95Logins          int     `mapstructure:"p95_logins"`
	TopN               int     `mapstructure:"top_n"`
}

type ClassifyCfg struct {
	MissingStatusIsSuccess bool     `mapstructure:"missing_status_is_success"`
	LoginKeywords          []string `mapstructure:"login_keywords"`
	MountTypes             []string `mapstructure:"mount_types"`
	// FailuresIncludeRequests counts login request records (not only
	// unsuccessful responses) toward a mount's failure count.
	FailuresIncludeRequests bool `mapstructure:"failures_include_requests"`
}

type LabelCfg struct {
	DisplayNameFallback bool `mapstructure:"display_name_fallback"`
}

type InputCfg struct {
	Workers          int `mapstructure:"workers"`
	ChunkLines       int `mapstructure:"chunk_lines"`
	MaxLineBytes     int `mapstructure:"max_line_bytes"`
	ProgressInterval int `mapstructure:"progress_interval"`
}

type LookupsCfg struct {
	MountsFile   string `mapstructure:"mounts_file"`
	EntitiesFile string `mapstructure:"entities_file"`
}

type FiltersCfg struct {
	Mounts     []string `mapstructure:"mounts"`
	Namespaces []string `mapstructure:"namespaces"`
}

type OutputCfg struct {
	Format      string `mapstructure:"format"`
	Dir         string `mapstructure:"dir"`
	FlaggedOnly bool   `mapstructure:"flagged_only"`
	// RejectFile receives unparsable lines as NDJSON when set.
	RejectFile string `mapstructure:"reject_file"`
}

type Config struct {
	Version    string        `mapstructure:"version"`
	Thresholds ThresholdsCfg `mapstructure:"thresholds"`
	Classify   ClassifyCfg   `mapstructure:"classify"`
	Label      LabelCfg      `mapstructure:"label"`
	Input      InputCfg      `mapstructure:"input"`
	Lookups    LookupsCfg    `mapstructure:"lookups"`
	Filters    FiltersCfg    `mapstructure:"filters"`
	Output     OutputCfg     `mapstructure:"output"`
	Logging    LoggingCfg    `mapstructure:"logging"`
}

var cfg *Config

// SetDefaults registers every documented default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", "0.1")

	v.SetDefault("thresholds.chatty_entity_logins", 200)
	v.SetDefault("thresholds.churn_entities", 50)
	v.SetDefault("thresholds.singleton_ratio", 0.80)
	v.SetDefault("thresholds.p95_logins", 10)
	v.SetDefault("thresholds.top_n", 15)

	v.SetDefault("classify.missing_status_is_success", true)
	v.SetDefault("classify.login_keywords", []string{"kubernetes", "openshift"})
	v.SetDefault("classify.mount_types", []string{"kubernetes", "openshift"})
	v.SetDefault("classify.failures_include_requests", true)

	v.SetDefault("label.display_name_fallback", true)

	v.SetDefault("input.workers", runtime.GOMAXPROCS(0))
	v.SetDefault("input.chunk_lines", 8192)
	v.SetDefault("input.max_line_bytes", 64<<20)
	v.SetDefault("input.progress_interval", 500000)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.flagged_only", true)

	v.SetDefault("logging.level", "info")
}

// Load populates global config from a viper instance and validates it.
func Load(v *viper.Viper) error {
	SetDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = &c
	return nil
}

// Default returns a validated Config holding only the documented defaults.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return &c
}

func Get() *Config {
	if cfg == nil {
		cfg = Default()
	}
	return cfg
}

var allowedFormats = map[string]struct{}{
	"text": {}, "csv": {}, "json": {},
}

// Validate reports every unusable value at once. The returned error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	t := c.Thresholds
	if t.ChattyEntityLogins < 0 {
		errs = append(errs, fmt.Errorf("thresholds.chatty_entity_logins must be >= 0, got %d", t.ChattyEntityLogins))
	}
	if t.ChurnEntities < 0 {
		errs = append(errs, fmt.Errorf("thresholds.churn_entities must be >= 0, got %d", t.ChurnEntities))
	}
	if t.SingletonRatio < 0 || t.SingletonRatio > 1 {
		errs = append(errs, fmt.Errorf("thresholds.singleton_ratio must be within [0,1], got %v", t.SingletonRatio))
	}
	if t.P95Logins < 0 {
		errs = append(errs, fmt.Errorf("thresholds.p95_logins must be >= 0, got %d", t.P95Logins))
	}
	if t.TopN < 0 {
		errs = append(errs, fmt.Errorf("thresholds.top_n must be >= 0, got %d", t.TopN))
	}

	if len(c.Classify.LoginKeywords) == 0 && len(c.Classify.MountTypes) == 0 {
		errs = append(errs, errors.New("classify: at least one login keyword or mount type is required"))
	}

	if c.Input.Workers < 0 {
		errs = append(errs, fmt.Errorf("input.workers must be >= 0, got %d", c.Input.Workers))
	}
	if c.Input.ChunkLines < 0 {
		errs = append(errs, fmt.Errorf("input.chunk_lines must be >= 0, got %d", c.Input.ChunkLines))
	}
	if c.Input.MaxLineBytes < 0 {
		errs = append(errs, fmt.Errorf("input.max_line_bytes must be >= 0, got %d", c.Input.MaxLineBytes))
	}

	if _, ok := allowedFormats[strings.ToLower(c.Output.Format)]; !ok {
		errs = append(errs, fmt.Errorf("output.format must be one of text|csv|json, got %q", c.Output.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
