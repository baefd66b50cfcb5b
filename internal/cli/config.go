package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/pendergraft/deployer/internal/config"
	"github.com/pendergraft/deployer/internal/netconfig"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"deployer.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Network        string            `toml:"network,omitempty"`
	ChainID        uint64            `toml:"chain_id,omitempty"`
	Artifact       string            `toml:"artifact,omitempty"`
	Contract       string            `toml:"contract,omitempty"`
	Output         string            `toml:"output,omitempty"`
	WriteMode      string            `toml:"write_mode,omitempty"`
	StrictChainID  bool              `toml:"strict_chain_id,omitempty"`
	ConfirmTimeout string            `toml:"confirm_timeout,omitempty"`
	Foundry        FoundryConfigTOML `toml:"foundry,omitempty"`
}

// FoundryConfigTOML contains Foundry-specific configuration for project config
type FoundryConfigTOML struct {
	ProjectDir string   `toml:"project_dir,omitempty"`
	Exclude    []string `toml:"exclude,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var network string
	var chainID uint64
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a deployer.toml configuration file in the current directory.

This file stores project-specific settings like the network name written
to the output file, the artifact to deploy and where to write the result.
Secrets (RPC_URL, PRIVATE_KEY) belong in .env.local, not in this file.

EXAMPLES:
  # Create config for the default network
  deployer config init

  # Create config for another network
  deployer config init --network Local --chain-id 1337

  # Overwrite existing config
  deployer config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = projectConfigFiles[0]
			}
			return runConfigInit(cmd.OutOrStdout(), path, network, chainID, force)
		},
	}

	cmd.Flags().StringVar(&network, "network", config.DefaultNetworkName, "network name written to the output file")
	cmd.Flags().Uint64Var(&chainID, "chain-id", config.DefaultChainID, "chain id written to the output file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows the environment, the project config (deployer.toml) and the networks
already recorded in the output file. The private key is never printed.

EXAMPLES:
  deployer config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runConfigInit(w io.Writer, configPath, network string, chainID uint64, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return configError("config init", fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath))
	}

	content := fmt.Sprintf(`# Deployer project configuration
#
# Precedence: command line flags > environment > this file > defaults.
# RPC_URL and PRIVATE_KEY are read from the environment or .env.local.

network = "%s"
chain_id = %d

# Metadata JSON with "abi" and "bytecode"
artifact = "Metadata.json"

# Network configuration file (.json, .yaml, .toml or .ts)
output = "deployments.json"

# "merge" keeps other networks in the output file, "replace" drops them
write_mode = "merge"

# Fail instead of warning when the node reports another chain id
# strict_chain_id = true

# Give up waiting for the receipt after this long (0 waits forever)
# confirm_timeout = "5m"

# Deploy a contract from a Foundry project instead of artifact
# contract = "MyContract"
# [foundry]
# project_dir = "."
# exclude = ["Test", "Script", "Mock"]
`, network, chainID)

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(w, "Created %s\n", configPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Network:  %s\n", network)
	fmt.Fprintf(w, "  Chain ID: %d\n", chainID)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintf(w, "  1. Edit %s to customize settings\n", configPath)
	fmt.Fprintln(w, "  2. Put RPC_URL and PRIVATE_KEY in .env.local")
	fmt.Fprintln(w, "  3. Run 'deployer deploy'")

	return nil
}

func runConfigShow(w io.Writer) error {
	if err := config.LoadEnvFiles(config.DefaultEnvFiles...); err != nil {
		return configError("load env files", err)
	}

	fmt.Fprintln(w, "Configuration sources (in order of precedence):")
	fmt.Fprintln(w)

	// 1. Command line flags
	fmt.Fprintln(w, "1. Command line flags")
	fmt.Fprintln(w, "   --network, --chain-id, --artifact, --contract, --output, --replace, ...")
	fmt.Fprintln(w)

	// 2. Environment variables
	fmt.Fprintln(w, "2. Environment variables (including .env.local and .env)")
	for _, key := range []string{"RPC_URL", "DEPLOY_NETWORK", "DEPLOY_CHAIN_ID", "ARTIFACT_PATH", "DEPLOY_OUTPUT", "DEPLOY_WRITE_MODE", "HISTORY_STORAGE"} {
		if v := os.Getenv(key); v != "" {
			fmt.Fprintf(w, "   %s=%s\n", key, v)
		} else {
			fmt.Fprintf(w, "   %s=(not set)\n", key)
		}
	}
	if os.Getenv("PRIVATE_KEY") != "" {
		fmt.Fprintln(w, "   PRIVATE_KEY=****")
	} else {
		fmt.Fprintln(w, "   PRIVATE_KEY=(not set)")
	}
	fmt.Fprintln(w)

	// 3. Local project config
	fmt.Fprintln(w, "3. Project config (deployer.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(w, "   (not found)")
		} else {
			fmt.Fprintf(w, "   Error: %v\n", err)
		}
	} else {
		fmt.Fprintf(w, "   Loaded from: %s\n", configPath)
		if projectConfig.Network != "" {
			fmt.Fprintf(w, "   network: %s\n", projectConfig.Network)
		}
		if projectConfig.ChainID != 0 {
			fmt.Fprintf(w, "   chain_id: %d\n", projectConfig.ChainID)
		}
		if projectConfig.Artifact != "" {
			fmt.Fprintf(w, "   artifact: %s\n", projectConfig.Artifact)
		}
		if projectConfig.Contract != "" {
			fmt.Fprintf(w, "   contract: %s\n", projectConfig.Contract)
		}
		if projectConfig.Output != "" {
			fmt.Fprintf(w, "   output: %s\n", projectConfig.Output)
		}
		if projectConfig.WriteMode != "" {
			fmt.Fprintf(w, "   write_mode: %s\n", projectConfig.WriteMode)
		}
	}
	fmt.Fprintln(w)

	// Effective config
	cfg, err := resolveConfig(nil, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Effective configuration:")
	fmt.Fprintf(w, "   Credentials: %s\n", cfg.Credentials)
	fmt.Fprintf(w, "   Network:     %s (chain id %d)\n", cfg.Network.Name, cfg.Network.ChainID)
	if cfg.Artifact.Contract != "" {
		fmt.Fprintf(w, "   Contract:    %s (project %s)\n", cfg.Artifact.Contract, cfg.Artifact.ProjectDir)
	} else {
		fmt.Fprintf(w, "   Artifact:    %s\n", cfg.Artifact.Path)
	}
	fmt.Fprintf(w, "   Output:      %s (%s)\n", cfg.Output.Path, cfg.Output.Mode)
	fmt.Fprintf(w, "   History:     %s\n", cfg.History.Type)
	fmt.Fprintln(w)

	// Networks already recorded
	fmt.Fprintf(w, "Recorded networks (%s):\n", cfg.Output.Path)
	existing, err := netconfig.Read(cfg.Output.Path)
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(w, "   (not found)")
	case err != nil:
		fmt.Fprintf(w, "   Error: %v\n", err)
	case len(existing.Networks) == 0:
		fmt.Fprintln(w, "   (none)")
	default:
		names := make([]string, 0, len(existing.Networks))
		for name := range existing.Networks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			n := existing.Networks[name]
			fmt.Fprintf(w, "   %s: %s (chain id %d) %s\n", name, n.Address, n.ChainID, n.URL)
		}
	}

	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	// If --config flag was provided, use that directly
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	// Search for config files in order
	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigOptional loads the project config, treating a missing file
// as no config. An explicit --config path must exist.
func loadProjectConfigOptional() (*ProjectConfig, error) {
	pc, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) && cfgFile == "" {
			return &ProjectConfig{}, nil
		}
		return nil, err
	}
	return pc, nil
}
