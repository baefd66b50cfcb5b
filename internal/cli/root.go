package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/pendergraft/deployer/internal/deployments/domain"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// Exit codes returned by the deployer binary
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitArtifact      = 3
	ExitTransport     = 4
	ExitReverted      = 5
	ExitFilesystem    = 6
	ExitInterrupted   = 130
)

// Execute runs the CLI. Running the binary without a subcommand deploys.
func Execute(ctx context.Context, version string) error {
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	opts := &deployOptions{}

	rootCmd := &cobra.Command{
		Use:   "deployer",
		Short: "Deploy a compiled contract and record its address",
		Long: `Deployer signs and sends a contract creation transaction to an EVM
JSON-RPC endpoint, waits for it to be mined and writes the resulting
address into a network configuration file.

Running deployer without a subcommand is the same as 'deployer deploy'.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "project config file (default: deployer.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default from LOG_FORMAT)")

	addDeployFlags(rootCmd, opts)

	// Add subcommands
	rootCmd.AddCommand(createDeployCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createHistoryCmd())
	rootCmd.AddCommand(createArtifactCmd())

	return rootCmd
}

// ExitCode maps an error returned by Execute to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	switch domain.KindOf(err) {
	case domain.KindConfiguration:
		return ExitConfiguration
	case domain.KindArtifact:
		return ExitArtifact
	case domain.KindTransport:
		return ExitTransport
	case domain.KindReverted:
		return ExitReverted
	case domain.KindFilesystem:
		return ExitFilesystem
	case domain.KindInterrupted:
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// configError marks a failure to assemble the run configuration
func configError(op string, err error) error {
	return &domain.DeploymentError{Kind: domain.KindConfiguration, Op: op, Err: err}
}

// artifactError marks a failure to read the contract artifact
func artifactError(op string, err error) error {
	return &domain.DeploymentError{Kind: domain.KindArtifact, Op: op, Err: err}
}
