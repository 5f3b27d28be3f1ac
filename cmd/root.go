package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/config"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/logger"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/tracing"
	"github.com/spf13/cobra"
)

// tracingFlushTimeout bounds the final span export
const tracingFlushTimeout = 5 * time.Second

// Version is overridden at build time with -ldflags "-X ...cmd.Version=..."
var Version = "0.1.0"

// shutdownTracing flushes spans once the command has finished
var shutdownTracing tracing.ShutdownFunc = tracing.NoopShutdown

// reportedError marks an error that has already been printed to the user
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCommand builds the n8n-deployer command tree. Running the root
// command without a subcommand performs a deployment.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Deploy n8n workflow definitions to an n8n instance",
		Long: `n8n-deployer pushes every workflow definition in a directory to an
n8n instance through its REST API.

Each workflow is matched by name: an existing workflow is updated in place,
otherwise a new one is created. Deployed workflows are always left inactive.

The target is read from N8N_HOST and N8N_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// CLI flags override the config file and environment
			if err := config.Initialize(cfgFile, cmd.Flags()); err != nil {
				return err
			}

			logConfig := logger.LoggerConfig{
				Debug:     config.Instance.Debug,
				LogFormat: config.Instance.LogFormat,
				LogFile:   config.Instance.LogFile,
			}
			if err := logger.InitLogger(logConfig); err != nil {
				return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, err.Error())
			}

			shutdown, err := tracing.Init(cmd.Context(), tracing.Config{
				Enabled:        config.Instance.Tracing.Enabled,
				Endpoint:       config.Instance.Tracing.Endpoint,
				Insecure:       config.Instance.Tracing.Insecure,
				SampleRatio:    config.Instance.Tracing.SampleRatio,
				ServiceName:    config.AppName,
				ServiceVersion: Version,
			})
			if err != nil {
				return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, err.Error())
			}
			shutdownTracing = shutdown

			logger.LogDebug("Configuration loaded", map[string]interface{}{
				"config_file": config.ConfigFile,
				"command":     cmd.Name(),
			})
			return nil
		},
		RunE: runDeploy,
	}

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "human", "Log format: json or human")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")
	rootCmd.PersistentFlags().Bool("tracing", false, "Export OpenTelemetry traces over OTLP gRPC")
	rootCmd.PersistentFlags().String("tracing-endpoint", "", "OTLP gRPC collector host:port (default $OTEL_EXPORTER_OTLP_ENDPOINT or localhost:4317)")

	// The root command deploys too, so it carries the deploy flags
	addDeployFlags(rootCmd)

	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command with args and prints any error that has not
// already been reported.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)

	// The run context may already be cancelled; give the exporter its own deadline
	flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
	if shutdownErr := shutdownTracing(flushCtx); shutdownErr != nil {
		logger.LogError("Failed to flush traces", shutdownErr, nil)
	}
	cancel()
	shutdownTracing = tracing.NoopShutdown

	_ = logger.Sync()

	if err == nil {
		return nil
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "ERROR: %v\n", err)
	}
	return err
}

// newVersionCommand shows the application version
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// Version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", config.AppName, Version)
		},
	}
}
