package cmd

import (
	"fmt"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/config"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/deploy"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/logger"
	"github.com/deploymenttheory/n8n-workflow-deployer/pkg/tooling"
	"github.com/spf13/cobra"
)

// newDeployCommand represents the deploy command
func newDeployCommand() *cobra.Command {
	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update every workflow in the workflow directory",
		Long: `Reads each workflow definition from the workflow directory and upserts it
by name. Failures are reported per file and the run continues; the exit
status is non-zero when any file failed.`,
		Args: cobra.NoArgs,
		RunE: runDeploy,
	}

	addDeployFlags(deployCmd)
	return deployCmd
}

// addDeployFlags registers the deployment flags on cmd
func addDeployFlags(cmd *cobra.Command) {
	defaults := deploy.DefaultOptions()

	flags := cmd.Flags()
	flags.String("dir", defaults.Dir, "Directory containing workflow definitions")
	flags.String("ext", defaults.Extension, "Workflow file extension")
	flags.Int("concurrency", defaults.Concurrency, "Number of workflows deployed in parallel")
	flags.String("on-duplicate", string(defaults.OnDuplicate), "Match to use when several workflows share a name: first, oldest or error")
	flags.Bool("lookup-fail-open", defaults.LookupFailOpen, "Treat a failed name lookup as no match")
	flags.Bool("dry-run", false, "Look up workflows and report the planned action without writing")
	flags.Duration("timeout", 0, "Per-request HTTP timeout (0 disables)")
	flags.Float64("rate-limit", 0, "Maximum requests per second (0 disables)")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification")
}

// runDeploy validates configuration, runs the deployment and prints the summary
func runDeploy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	runner, err := tooling.NewRunner(&config.Instance, out, errOut)
	if err != nil {
		if errors.Is(err, errors.ErrConfigMissing) {
			fmt.Fprintf(errOut, "ERROR: %v\n", err)
			return &reportedError{err: err}
		}
		return err
	}

	logger.LogDebug("Runner created", map[string]interface{}{
		"run_id":      runner.RunID(),
		"config_file": config.ConfigFile,
	})

	res, err := runner.Run(cmd.Context())
	if err != nil {
		fmt.Fprintf(errOut, "Fatal error: %v\n", err)
		return &reportedError{err: err}
	}

	deploy.WriteSummary(out, res)

	if res.HasErrors() {
		return &reportedError{err: fmt.Errorf("%w: %d of %d files failed",
			errors.ErrDeploymentFailed, len(res.Errors), res.Total())}
	}
	return nil
}
