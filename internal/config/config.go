package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/fsutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/osutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/urlutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/deploy"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "n8n-deployer"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "N8N_DEPLOYER"

	// HostEnv and APIKeyEnv are read without the prefix; CI pipelines already
	// export them under these names.
	HostEnv   = "N8N_HOST"
	APIKeyEnv = "N8N_API_KEY"
)

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Remote n8n instance
	N8N struct {
		Host   string `mapstructure:"host"`    // host[:port], scheme optional
		APIKey string `mapstructure:"api_key"` // sent as X-N8N-API-KEY
	} `mapstructure:"n8n"`

	// Deployment settings
	Deploy struct {
		Dir            string `mapstructure:"dir"`
		Extension      string `mapstructure:"extension"`
		Concurrency    int    `mapstructure:"concurrency"`
		OnDuplicate    string `mapstructure:"on_duplicate"`
		LookupFailOpen bool   `mapstructure:"lookup_fail_open"`
		DryRun         bool   `mapstructure:"dry_run"`
	} `mapstructure:"deploy"`

	// HTTP client settings
	HTTP struct {
		Timeout            time.Duration `mapstructure:"timeout"`    // 0 disables the timeout
		RateLimit          float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
		InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	} `mapstructure:"http"`

	// OpenTelemetry trace export
	Tracing struct {
		Enabled     bool    `mapstructure:"enabled"`
		Endpoint    string  `mapstructure:"endpoint"` // OTLP gRPC host:port; falls back to OTEL_EXPORTER_OTLP_ENDPOINT
		Insecure    bool    `mapstructure:"insecure"`
		SampleRatio float64 `mapstructure:"sample_ratio"`
	} `mapstructure:"tracing"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string
)

// flagKeys maps viper keys to the CLI flags that override them
var flagKeys = map[string]string{
	"debug":                     "debug",
	"log_format":                "log-format",
	"log_file":                  "log-file",
	"deploy.dir":                "dir",
	"deploy.extension":          "ext",
	"deploy.concurrency":        "concurrency",
	"deploy.on_duplicate":       "on-duplicate",
	"deploy.lookup_fail_open":   "lookup-fail-open",
	"deploy.dry_run":            "dry-run",
	"http.timeout":              "timeout",
	"http.rate_limit":           "rate-limit",
	"http.insecure_skip_verify": "insecure-skip-verify",
	"tracing.enabled":           "tracing",
	"tracing.endpoint":          "tracing-endpoint",
}

// Initialize loads the configuration into Instance. Flags present in flags
// take precedence over environment variables and the config file.
func Initialize(cfgFile string, flags *pflag.FlagSet) error {
	cfg, used, err := Load(cfgFile, flags)
	if err != nil {
		return err
	}

	Instance = *cfg
	ConfigFile = used
	ConfigLoaded = used != ""
	return nil
}

// Load builds a configuration from defaults, an optional config file, the
// environment and flags, in increasing order of precedence. It returns the
// config file actually read, or "" when none was found.
func Load(cfgFile string, flags *pflag.FlagSet) (*AppConfig, string, error) {
	v := newViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	used := ""
	if readErr := v.ReadInConfig(); readErr != nil {
		// An explicitly named file must exist; a searched one is optional
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, "", fmt.Errorf("error reading config file: %w", readErr)
		}
	} else {
		used = v.ConfigFileUsed()
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("error parsing config: %w", err)
	}

	cfg.N8N.Host = strings.TrimSpace(cfg.N8N.Host)
	cfg.N8N.APIKey = strings.TrimSpace(cfg.N8N.APIKey)

	return cfg, used, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unprefixed names take priority, prefixed ones still work
	_ = v.BindEnv("n8n.host", HostEnv, EnvPrefix+"_N8N_HOST")
	_ = v.BindEnv("n8n.api_key", APIKeyEnv, EnvPrefix+"_N8N_API_KEY")

	return v
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")

	// n8n defaults; both must be supplied by the environment or config file
	v.SetDefault("n8n.host", "")
	v.SetDefault("n8n.api_key", "")

	// Deploy defaults
	v.SetDefault("deploy.dir", "./workflows")
	v.SetDefault("deploy.extension", ".json")
	v.SetDefault("deploy.concurrency", 1)
	v.SetDefault("deploy.on_duplicate", string(deploy.DuplicateFirst))
	v.SetDefault("deploy.lookup_fail_open", true)
	v.SetDefault("deploy.dry_run", false)

	// HTTP defaults
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("http.rate_limit", 0.0)
	v.SetDefault("http.insecure_skip_verify", false)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	// Always check current directory first
	v.AddConfigPath(".")

	// In CI/Pipeline, only use current directory and explicit CI directories
	if osutil.IsCI() {
		v.AddConfigPath("/etc/" + AppName)
		return
	}

	if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
		v.AddConfigPath(configDir)
	}

	if systemConfigDir, err := fsutil.GetSystemConfigDir(AppName); err == nil {
		v.AddConfigPath(systemConfigDir)
	}
}

// Validate reports missing credentials and out-of-range settings. It must
// pass before any file or network I/O.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.N8N.Host == "" {
		missing = append(missing, HostEnv)
	}
	if c.N8N.APIKey == "" {
		missing = append(missing, APIKeyEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrConfigMissing, strings.Join(missing, " or "))
	}

	if _, err := urlutil.ParseBaseURL(c.N8N.Host); err != nil {
		return fmt.Errorf("%w: %s: %s", errors.ErrInvalidConfig, HostEnv, err.Error())
	}

	if c.Deploy.Dir == "" {
		return fmt.Errorf("%w: deploy.dir must not be empty", errors.ErrInvalidConfig)
	}
	if c.Deploy.Extension == "" {
		return fmt.Errorf("%w: deploy.extension must not be empty", errors.ErrInvalidConfig)
	}
	if c.Deploy.Concurrency < 1 {
		return fmt.Errorf("%w: deploy.concurrency must be at least 1, got %d", errors.ErrInvalidConfig, c.Deploy.Concurrency)
	}

	if !deploy.DuplicatePolicy(c.Deploy.OnDuplicate).Valid() {
		return fmt.Errorf("%w: deploy.on_duplicate must be one of first, oldest, error; got %q",
			errors.ErrInvalidConfig, c.Deploy.OnDuplicate)
	}

	switch c.LogFormat {
	case "human", "json":
	default:
		return fmt.Errorf("%w: log_format must be human or json; got %q", errors.ErrInvalidConfig, c.LogFormat)
	}

	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("%w: http.timeout must not be negative", errors.ErrInvalidConfig)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("%w: http.rate_limit must not be negative", errors.ErrInvalidConfig)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be between 0 and 1, got %g",
			errors.ErrInvalidConfig, c.Tracing.SampleRatio)
	}

	return nil
}
