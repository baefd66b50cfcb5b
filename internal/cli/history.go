package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/deployer/internal/deployments/domain"
	"github.com/pendergraft/deployer/internal/storage"
)

func createHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Deployment history commands",
	}

	cmd.AddCommand(createHistoryListCmd())
	cmd.AddCommand(createHistoryShowCmd())

	return cmd
}

func createHistoryListCmd() *cobra.Command {
	var network string
	var status string
	var limit int
	var cursor string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployment attempts",
		Long: `List past deployment attempts, newest first.

Every run of 'deployer deploy' is journaled, including runs that failed
before the contract was created.

EXAMPLES:
  # List recent attempts
  deployer history list

  # Only failed attempts on one network
  deployer history list --network Sonic --status failed

  # Output as JSON
  deployer history list --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := domain.NewService(nil, store, slog.Default())
			result, err := svc.History(cmd.Context(), domain.HistoryFilter{
				Network: network,
				Status:  storage.AttemptStatus(status),
			}, domain.PaginationParams{Limit: limit, Cursor: cursor})
			if err != nil {
				if errors.Is(err, storage.ErrInvalidStatus) {
					return configError("history list", err)
				}
				return fmt.Errorf("failed to list attempts: %w", err)
			}

			return printHistory(cmd.OutOrStdout(), result, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "filter by network name")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, submitted, confirmed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to show")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this attempt ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createHistoryShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one deployment attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			attempt, err := store.GetAttempt(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("attempt not found: %s", args[0])
				}
				return fmt.Errorf("failed to get attempt: %w", err)
			}

			return printAttempt(cmd.OutOrStdout(), attempt, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

// openHistory opens and migrates the configured journal
func openHistory(cmd *cobra.Command) (storage.Store, error) {
	cfg, err := resolveConfig(nil, nil)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	store, err := storage.New(cfg.History, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func printHistory(w io.Writer, result *domain.HistoryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"attempts":   result.Attempts,
			"count":      len(result.Attempts),
			"hasMore":    result.HasMore,
			"nextCursor": result.NextCursor,
		})
	}

	if len(result.Attempts) == 0 {
		fmt.Fprintln(w, "No deployment attempts found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNETWORK\tCONTRACT\tSTATUS\tADDRESS\tCREATED")
	for _, a := range result.Attempts {
		// Truncate ID for display
		idDisplay := a.ID
		if len(a.ID) > 8 {
			idDisplay = a.ID[:8]
		}
		address := a.Address
		if address == "" {
			address = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			idDisplay, a.Network, a.ContractName, a.Status, address, a.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()

	if result.HasMore {
		fmt.Fprintf(w, "\n(showing %d attempts, more available: --cursor %s)\n", len(result.Attempts), result.NextCursor)
	}

	return nil
}

func printAttempt(w io.Writer, a *storage.Attempt, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	fmt.Fprintf(w, "Attempt %s\n\n", a.ID)
	fmt.Fprintf(w, "  Status:    %s\n", a.Status)
	fmt.Fprintf(w, "  Network:   %s (chain id %d)\n", a.Network, a.ChainID)
	fmt.Fprintf(w, "  Endpoint:  %s\n", a.RPCURL)
	fmt.Fprintf(w, "  Contract:  %s\n", a.ContractName)
	if a.DeployerAddress != "" {
		fmt.Fprintf(w, "  Deployer:  %s\n", a.DeployerAddress)
	}
	if a.TxHash != "" {
		fmt.Fprintf(w, "  Tx:        %s\n", a.TxHash)
	}
	if a.Address != "" {
		fmt.Fprintf(w, "  Address:   %s\n", a.Address)
		fmt.Fprintf(w, "  Block:     %d\n", a.BlockNumber)
	}
	if a.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", a.Error)
	}
	fmt.Fprintf(w, "  Created:   %s\n", a.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Updated:   %s\n", a.UpdatedAt.Local().Format(time.DateTime))

	return nil
}
