package tooling

import (
	"context"
	"fmt"
	"io"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/config"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/deploy"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/logger"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/n8n"
)

// InitOptions contains options for initializing the tooling API
type InitOptions struct {
	ConfigFile  string // Path to configuration file
	Debug       bool   // Enable debug logging
	LogFormat   string // Log format: "human" or "json"
	LogFile     string // Path to log file
	SuppressLog bool   // Suppress all logging
}

// DeployResult contains the results of a deployment run
type DeployResult struct {
	Success      bool            // Whether every file deployed
	ErrorMessage string          // Fatal error message if any
	Results      *deploy.Results // Per-file outcomes; nil after a fatal error
}

var initialized bool

// Initialize initializes the tooling API with the given options
func Initialize(options InitOptions) error {
	if initialized {
		return nil // Already initialized
	}

	if err := config.Initialize(options.ConfigFile, nil); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	// Update config with provided options
	if options.Debug {
		config.Instance.Debug = true
	}
	if options.LogFormat != "" {
		config.Instance.LogFormat = options.LogFormat
	}
	if options.LogFile != "" {
		config.Instance.LogFile = options.LogFile
	}

	if !options.SuppressLog {
		logConfig := logger.LoggerConfig{
			Debug:     config.Instance.Debug,
			LogFormat: config.Instance.LogFormat,
			LogFile:   config.Instance.LogFile,
		}
		if err := logger.InitLogger(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.LogInfo("Tooling API initialized", map[string]interface{}{
			"config_file": config.ConfigFile,
			"debug":       config.Instance.Debug,
			"log_format":  config.Instance.LogFormat,
		})
	}

	initialized = true
	return nil
}

// DefaultOptions returns the default initialization options
func DefaultOptions() InitOptions {
	return InitOptions{
		Debug:     false,
		LogFormat: "human",
	}
}

// NewRunner validates cfg and builds a Runner backed by an n8n client.
// Progress lines go to out, per-file errors to errOut.
func NewRunner(cfg *config.AppConfig, out, errOut io.Writer) (*deploy.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := n8n.NewClient(cfg.N8N.Host, cfg.N8N.APIKey, n8n.Options{
		Timeout:            cfg.HTTP.Timeout,
		RateLimit:          cfg.HTTP.RateLimit,
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	logger.LogDebug("n8n client ready", map[string]interface{}{
		"base_url":   client.BaseURL(),
		"timeout":    cfg.HTTP.Timeout.String(),
		"rate_limit": cfg.HTTP.RateLimit,
	})

	return deploy.NewRunner(client, deploy.Options{
		Dir:            cfg.Deploy.Dir,
		Extension:      cfg.Deploy.Extension,
		Concurrency:    cfg.Deploy.Concurrency,
		OnDuplicate:    deploy.DuplicatePolicy(cfg.Deploy.OnDuplicate),
		LookupFailOpen: cfg.Deploy.LookupFailOpen,
		DryRun:         cfg.Deploy.DryRun,
		Out:            out,
		ErrOut:         errOut,
	}), nil
}

// Deploy runs a deployment with the loaded configuration. Console output is
// written to out; pass io.Discard to rely on the returned results only.
func Deploy(ctx context.Context, out io.Writer) (*DeployResult, error) {
	// Ensure API is initialized
	if !initialized {
		if err := Initialize(DefaultOptions()); err != nil {
			return nil, fmt.Errorf("failed to initialize tooling API: %w", err)
		}
	}

	runner, err := NewRunner(&config.Instance, out, out)
	if err != nil {
		return &DeployResult{ErrorMessage: err.Error()}, err
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return &DeployResult{ErrorMessage: err.Error()}, err
	}

	return &DeployResult{Success: !res.HasErrors(), Results: res}, nil
}

// SetWorkflowDir overrides the directory deployed by Deploy
func SetWorkflowDir(dir string) {
	// Ensure API is initialized
	if !initialized {
		_ = Initialize(DefaultOptions())
	}

	config.Instance.Deploy.Dir = dir
}

// SetDryRun toggles lookup-only runs
func SetDryRun(dryRun bool) {
	if !initialized {
		_ = Initialize(DefaultOptions())
	}

	config.Instance.Deploy.DryRun = dryRun
}
