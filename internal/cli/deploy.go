package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/deployer/internal/chains"
	"github.com/pendergraft/deployer/internal/chains/evm"
	"github.com/pendergraft/deployer/internal/chains/evm/foundry"
	"github.com/pendergraft/deployer/internal/config"
	"github.com/pendergraft/deployer/internal/deployments/domain"
	"github.com/pendergraft/deployer/internal/middleware/logging"
	"github.com/pendergraft/deployer/internal/netconfig"
	"github.com/pendergraft/deployer/internal/observability/metrics"
	"github.com/pendergraft/deployer/internal/storage"
)

// metricsPushTimeout bounds the final Pushgateway push, which runs even after
// the deployment context was cancelled
const metricsPushTimeout = 15 * time.Second

// deployOptions holds the deploy flags
type deployOptions struct {
	artifact       string
	contract       string
	project        string
	output         string
	network        string
	chainID        uint64
	replace        bool
	confirmTimeout time.Duration
	promptKey      bool
	strictChainID  bool
	jsonOutput     bool
}

func createDeployCmd() *cobra.Command {
	opts := &deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the contract and record its address",
		Long: `Deploy the contract artifact and record its address in the network
configuration file.

RPC_URL and PRIVATE_KEY are read from the environment, .env.local or .env.
Settings are taken from flags, then the environment, then deployer.toml,
then defaults. The output file is only written after the creation
transaction is mined and code exists at the new address.

EXAMPLES:
  # Deploy Metadata.json to the default network (Sonic, chain id 14601)
  deployer deploy

  # Deploy a Foundry contract and write a YAML file
  deployer deploy --contract Counter --project ./contracts --output deployments.yaml

  # Drop other networks from the output file
  deployer deploy --replace

  # Ask for the private key instead of reading PRIVATE_KEY
  deployer deploy --prompt-key
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts)
		},
	}

	addDeployFlags(cmd, opts)

	return cmd
}

// addDeployFlags registers the deploy flags on cmd. The root command carries
// them too so that a bare invocation deploys.
func addDeployFlags(cmd *cobra.Command, opts *deployOptions) {
	cmd.Flags().StringVarP(&opts.artifact, "artifact", "a", "", "metadata artifact with abi and bytecode (default: Metadata.json)")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name to deploy from a Foundry project")
	cmd.Flags().StringVar(&opts.project, "project", "", "Foundry project directory (default: .)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "network config file to write (default: deployments.json)")
	cmd.Flags().StringVarP(&opts.network, "network", "n", "", "network name to record (default: Sonic)")
	cmd.Flags().Uint64Var(&opts.chainID, "chain-id", 0, "chain id to record (default: 14601)")
	cmd.Flags().BoolVar(&opts.replace, "replace", false, "replace the output file instead of merging into it")
	cmd.Flags().DurationVar(&opts.confirmTimeout, "confirm-timeout", 0, "give up waiting for the receipt after this long (default: wait until interrupted)")
	cmd.Flags().BoolVar(&opts.promptKey, "prompt-key", false, "prompt for the private key when PRIVATE_KEY is not set")
	cmd.Flags().BoolVar(&opts.strictChainID, "strict-chain-id", false, "fail when the node reports a different chain id")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the deployment record as JSON")
}

func runDeploy(cmd *cobra.Command, opts *deployOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

	if opts.promptKey && cfg.Credentials.PrivateKey == "" {
		key, err := promptPrivateKey(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return configError("read private key", err)
		}
		cfg.Credentials.PrivateKey = key
	}

	artifact, err := loadArtifact(cfg.Artifact)
	if err != nil {
		return err
	}
	logger.Debug("loaded artifact",
		"name", artifact.Name,
		"builder", artifact.Builder,
		"bytecode_bytes", artifact.BytecodeSize(),
	)

	if cfg.Metrics.PushgatewayURL != "" {
		metrics.Init(true, cfg.Metrics.Job)
	}

	rpcClient := &http.Client{
		Transport: logging.RoundTripper(metrics.RoundTripper(nil), logger),
	}
	deployer := evm.NewDeployer(
		evm.WithDialer(evm.NewRPCDialer(rpcClient)),
		evm.WithPollInterval(cfg.Confirm.PollInterval),
		evm.WithLogger(logger),
	)

	store := openStore(ctx, cfg.History, logger)
	if store != nil {
		defer store.Close()
	}

	svc := domain.NewService(deployer, store, logger)
	rec, deployErr := svc.Deploy(ctx, domain.DeployRequest{
		Credentials:    cfg.Credentials,
		Artifact:       artifact,
		Network:        cfg.Network.Name,
		ChainID:        cfg.Network.ChainID,
		StrictChainID:  cfg.Network.StrictChainID,
		ConfirmTimeout: cfg.Confirm.Timeout,
		Output:         cfg.Output.Path,
		WriteMode:      netconfig.Mode(cfg.Output.Mode),
	})

	pushMetrics(ctx, cfg.Metrics, logger)

	if rec != nil {
		if err := printRecord(cmd.OutOrStdout(), rec, deployErr == nil, opts.jsonOutput); err != nil {
			logger.Warn("printing deployment record", "error", err)
		}
	}

	return deployErr
}

// resolveConfig builds the run configuration. Flags win over the environment,
// the environment wins over deployer.toml and deployer.toml wins over the
// defaults. cmd and opts may be nil when no flags apply.
func resolveConfig(cmd *cobra.Command, opts *deployOptions) (*config.Config, error) {
	if err := config.LoadEnvFiles(config.DefaultEnvFiles...); err != nil {
		return nil, configError("load env files", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, configError("load config", err)
	}

	pc, err := loadProjectConfigOptional()
	if err != nil {
		return nil, configError("load project config", err)
	}
	if err := applyProjectConfig(cfg, pc); err != nil {
		return nil, configError("load project config", err)
	}

	if cmd != nil && opts != nil {
		applyFlags(cmd, opts, cfg)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, configError("validate config", err)
	}
	return cfg, nil
}

// applyProjectConfig copies deployer.toml settings whose environment
// variable is unset
func applyProjectConfig(cfg *config.Config, pc *ProjectConfig) error {
	if pc.Network != "" && !envSet("DEPLOY_NETWORK") {
		cfg.Network.Name = pc.Network
	}
	if pc.ChainID != 0 && !envSet("DEPLOY_CHAIN_ID") {
		cfg.Network.ChainID = pc.ChainID
	}
	if pc.StrictChainID && !envSet("STRICT_CHAIN_ID") {
		cfg.Network.StrictChainID = true
	}
	if pc.Artifact != "" && !envSet("ARTIFACT_PATH") {
		cfg.Artifact.Path = pc.Artifact
	}
	if pc.Contract != "" && !envSet("DEPLOY_CONTRACT") {
		cfg.Artifact.Contract = pc.Contract
	}
	if pc.Foundry.ProjectDir != "" && !envSet("FOUNDRY_PROJECT_DIR") {
		cfg.Artifact.ProjectDir = pc.Foundry.ProjectDir
	}
	if pc.Output != "" && !envSet("DEPLOY_OUTPUT") {
		cfg.Output.Path = pc.Output
	}
	if pc.WriteMode != "" && !envSet("DEPLOY_WRITE_MODE") {
		cfg.Output.Mode = pc.WriteMode
	}
	if pc.ConfirmTimeout != "" && !envSet("CONFIRM_TIMEOUT") {
		d, err := parseTimeout(pc.ConfirmTimeout)
		if err != nil {
			return fmt.Errorf("confirm_timeout: %w", err)
		}
		cfg.Confirm.Timeout = d
	}
	return nil
}

func applyFlags(cmd *cobra.Command, opts *deployOptions, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("network") {
		cfg.Network.Name = opts.network
	}
	if changed("chain-id") {
		cfg.Network.ChainID = opts.chainID
	}
	if changed("strict-chain-id") {
		cfg.Network.StrictChainID = opts.strictChainID
	}
	if changed("artifact") {
		cfg.Artifact.Path = opts.artifact
		// an explicit artifact file wins over a contract from the environment
		if !changed("contract") {
			cfg.Artifact.Contract = ""
		}
	}
	if changed("contract") {
		cfg.Artifact.Contract = opts.contract
	}
	if changed("project") {
		cfg.Artifact.ProjectDir = opts.project
	}
	if changed("output") {
		cfg.Output.Path = opts.output
	}
	if changed("replace") {
		cfg.Output.Mode = config.WriteModeMerge
		if opts.replace {
			cfg.Output.Mode = config.WriteModeReplace
		}
	}
	if changed("confirm-timeout") {
		cfg.Confirm.Timeout = opts.confirmTimeout
	}
}

// parseTimeout accepts a Go duration or a bare number of seconds
func parseTimeout(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}

func envSet(key string) bool {
	return os.Getenv(key) != ""
}

// loadArtifact reads the artifact named by cfg. A contract name selects the
// artifact from a Foundry project; otherwise the file at cfg.Path is loaded
// with whichever builder recognizes it.
func loadArtifact(cfg config.ArtifactConfig) (*chains.Artifact, error) {
	path := cfg.Path

	if cfg.Contract != "" {
		b := foundry.New()
		ok, err := b.DetectProject(cfg.ProjectDir)
		if err != nil {
			return nil, artifactError("find contract", err)
		}
		if !ok {
			return nil, artifactError("find contract",
				fmt.Errorf("%s is not a Foundry project (no %s)", cfg.ProjectDir, b.ConfigFile()))
		}
		path, err = b.FindArtifact(cfg.ProjectDir, cfg.Contract)
		if err != nil {
			return nil, artifactError("find contract", err)
		}
	}

	artifact, err := evm.NewRegistry().Load(path)
	if err != nil {
		return nil, artifactError("load artifact", err)
	}
	return artifact, nil
}

// openStore opens the attempt journal. The journal is best effort, so a store
// that cannot be opened is logged and skipped.
func openStore(ctx context.Context, cfg config.HistoryConfig, logger *slog.Logger) storage.Store {
	if cfg.Type == "none" {
		return nil
	}

	store, err := storage.New(cfg, logger)
	if err != nil {
		logger.Warn("deployment history disabled", "storage", cfg.Type, "error", err)
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Warn("deployment history disabled", "storage", cfg.Type, "error", err)
		store.Close()
		return nil
	}
	return store
}

// pushMetrics sends the run's metrics to the Pushgateway. Failures are logged.
func pushMetrics(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPushTimeout)
	defer cancel()

	client := &http.Client{Timeout: metricsPushTimeout}
	if err := metrics.Push(ctx, cfg.PushgatewayURL, client, logger); err != nil {
		logger.Warn("failed to push metrics", "url", cfg.PushgatewayURL, "error", err)
	}
}

// printRecord writes the deployment record. A record is printed even when the
// output file could not be written so that the address is not lost.
func printRecord(w io.Writer, rec *domain.Record, written, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	if written {
		fmt.Fprintf(w, "✅ Deployed %s to %s\n", rec.Contract, rec.Network)
	} else {
		fmt.Fprintf(w, "⚠️  Deployed %s to %s but the output file was not written\n", rec.Contract, rec.Network)
	}
	fmt.Fprintf(w, "   Address:  %s\n", rec.Address.Hex())
	fmt.Fprintf(w, "   Tx:       %s\n", rec.TxHash.Hex())
	fmt.Fprintf(w, "   Block:    %d\n", rec.BlockNumber)
	fmt.Fprintf(w, "   Gas used: %d\n", rec.GasUsed)
	fmt.Fprintf(w, "   Deployer: %s\n", rec.Deployer.Hex())
	if rec.ReportedChainID != rec.ChainID {
		fmt.Fprintf(w, "   Chain ID: %d (node reports %d)\n", rec.ChainID, rec.ReportedChainID)
	} else {
		fmt.Fprintf(w, "   Chain ID: %d\n", rec.ChainID)
	}
	if written {
		fmt.Fprintf(w, "   Written:  %s\n", rec.Output)
	}
	return nil
}
