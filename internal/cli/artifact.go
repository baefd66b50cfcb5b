package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/deployer/internal/chains"
	"github.com/pendergraft/deployer/internal/chains/evm"
	"github.com/pendergraft/deployer/internal/chains/evm/foundry"
)

func createArtifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Inspect contract artifacts",
	}

	cmd.AddCommand(createArtifactInspectCmd())
	cmd.AddCommand(createArtifactListCmd())

	return cmd
}

func createArtifactInspectCmd() *cobra.Command {
	var contract string
	var project string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Show what an artifact would deploy",
		Long: `Show the interface and bytecode size of a contract artifact without
deploying it. The artifact is validated the same way 'deployer deploy'
validates it.

EXAMPLES:
  # Inspect the default artifact (Metadata.json)
  deployer artifact inspect

  # Inspect a specific file
  deployer artifact inspect out/Counter.sol/Counter.json

  # Inspect a contract in a Foundry project
  deployer artifact inspect --contract Counter --project ./contracts
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(nil, nil)
			if err != nil {
				return err
			}

			ac := cfg.Artifact
			switch {
			case len(args) == 1:
				ac.Path = args[0]
				ac.Contract = ""
			case contract != "":
				ac.Contract = contract
			}
			if project != "" {
				ac.ProjectDir = project
			}

			artifact, err := loadArtifact(ac)
			if err != nil {
				return err
			}

			iface, err := evm.Describe(artifact.EVM.ABI)
			if err != nil {
				return artifactError("parse abi", err)
			}

			return printArtifact(cmd.OutOrStdout(), artifact, iface, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "contract name in a Foundry project")
	cmd.Flags().StringVar(&project, "project", "", "Foundry project directory (default: .)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createArtifactListCmd() *cobra.Command {
	var project string
	var exclude []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployable contracts in a Foundry project",
		Long: `List the contracts in a Foundry project's out/ directory that can be
deployed. Interfaces and abstract contracts are skipped.

EXAMPLES:
  # List contracts in the current project
  deployer artifact list

  # Skip test helpers
  deployer artifact list --exclude Test --exclude "Mock*"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := project
			if dir == "" {
				dir = projectDir()
			}
			if len(exclude) == 0 {
				if pc, err := loadProjectConfigOptional(); err == nil {
					exclude = pc.Foundry.Exclude
				}
			}
			return runArtifactList(cmd.OutOrStdout(), dir, exclude, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Foundry project directory (default: .)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "contract names or patterns to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

// projectDir returns the configured Foundry project directory
func projectDir() string {
	cfg, err := resolveConfig(nil, nil)
	if err != nil || cfg.Artifact.ProjectDir == "" {
		return "."
	}
	return cfg.Artifact.ProjectDir
}

type listedArtifact struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int    `json:"bytecodeSize"`
}

func runArtifactList(w io.Writer, dir string, exclude []string, jsonOutput bool) error {
	b := foundry.New()

	ok, err := b.DetectProject(dir)
	if err != nil {
		return artifactError("artifact list", err)
	}
	if !ok {
		return artifactError("artifact list", fmt.Errorf("%s is not a Foundry project (no %s)", dir, b.ConfigFile()))
	}

	paths, err := b.Discover(dir, chains.DiscoverOptions{Exclude: exclude})
	if err != nil {
		return artifactError("artifact list", err)
	}

	listed := make([]listedArtifact, 0, len(paths))
	for _, p := range paths {
		item := listedArtifact{
			Name: strings.TrimSuffix(filepath.Base(p), ".json"),
			Path: p,
		}
		if a, err := b.Parse(p); err == nil {
			item.Bytes = a.BytecodeSize()
		}
		listed = append(listed, item)
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"contracts": listed,
			"count":     len(listed),
		})
	}

	if len(listed) == 0 {
		fmt.Fprintln(w, "No deployable contracts found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tPATH")
	for _, a := range listed {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", a.Name, a.Bytes, a.Path)
	}
	tw.Flush()

	return nil
}

func printArtifact(w io.Writer, a *chains.Artifact, iface *evm.Interface, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"name":         a.Name,
			"builder":      a.Builder,
			"sourcePath":   a.EVM.SourcePath,
			"compiler":     a.EVM.Compiler,
			"bytecodeSize": a.BytecodeSize(),
			"interface":    iface,
		})
	}

	fmt.Fprintf(w, "%s (%s)\n\n", a.Name, a.Builder)
	if a.EVM.SourcePath != "" {
		fmt.Fprintf(w, "  Source:    %s\n", a.EVM.SourcePath)
	}
	if a.EVM.Compiler.Version != "" {
		fmt.Fprintf(w, "  Compiler:  %s\n", a.EVM.Compiler.Version)
	}
	fmt.Fprintf(w, "  Bytecode:  %d bytes\n", a.BytecodeSize())
	if len(iface.Constructor) > 0 {
		fmt.Fprintf(w, "  Constructor: (%s) - not deployable without arguments\n", strings.Join(iface.Constructor, ", "))
	}

	printSection(w, "Functions", iface.Functions)
	printSection(w, "Events", iface.Events)
	printSection(w, "Errors", iface.Errors)

	return nil
}

func printSection(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}
