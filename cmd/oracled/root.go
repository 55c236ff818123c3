package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/GPTx-global/rofl-oracle/oracle/config"
	"github.com/GPTx-global/rofl-oracle/oracle/contract"
	"github.com/GPTx-global/rofl-oracle/oracle/daemon"
	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/retry"
	"github.com/GPTx-global/rofl-oracle/oracle/signer"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

const (
	flagHome    = "home"
	flagLogFile = "log-file"
	flagRetries = "retries"
)

// NewRootCmd creates the oracled command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "oracled",
		Short:         "Relay observations to the oracle contract through the local signer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}
			if err := config.Load(home); err != nil {
				return err
			}
			return log.SetLevel(config.LogLevel())
		},
	}

	rootCmd.PersistentFlags().String(flagHome, config.DefaultHome(), "oracle daemon home directory")

	rootCmd.AddCommand(
		StartCmd(),
		QueryCmd(),
		ConfigCmd(),
	)

	return rootCmd
}

// StartCmd runs the daemon until SIGINT or SIGTERM.
func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the relay daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logToFile, err := cmd.Flags().GetBool(flagLogFile)
			if err != nil {
				return err
			}
			if logToFile {
				log.ResetLogger(config.Home())
				fmt.Fprintf(cmd.OutOrStdout(), "writing logs to %s\n", log.Dir())
			}
			config.Print()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}

			if err := d.Start(); err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			return d.Wait()
		},
	}

	cmd.Flags().Bool(flagLogFile, false, "write logs to <home>/logs instead of stdout")
	return cmd
}

// QueryCmd groups one-shot reads against the contract.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Querying commands for the oracle contract",
	}

	cmd.AddCommand(LastObservationCmd())
	return cmd
}

// LastObservationCmd prints the last observation recorded by the contract.
func LastObservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last-observation",
		Short: "Query the last observation recorded by the contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			retries, err := cmd.Flags().GetUint64(flagRetries)
			if err != nil {
				return err
			}

			client := signer.New(config.SignerSocket(), config.GasLimit(), config.SignerTimeout())
			binding := contract.New(config.ContractAddress(), client)

			var observation types.RemoteObservation
			err = retry.Do(cmd.Context(), retry.QueryPolicy(), retries, func(ctx context.Context) error {
				var err error
				observation, err = binding.LastObservation(ctx)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to get last observation: %w", err)
			}

			return printJSON(cmd, observation)
		},
	}

	cmd.Flags().Uint64(flagRetries, 2, "retries on transient signer errors")
	return cmd
}

// ConfigCmd inspects the effective configuration.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, map[string]any{
				"home":               config.Home(),
				"listen_address":     config.ListenAddress(),
				"signer_socket":      config.SignerSocket(),
				"signer_timeout":     config.SignerTimeout().String(),
				"contract_address":   config.ContractAddress().Hex(),
				"gas_limit":          config.GasLimit(),
				"scheduler_interval": config.SchedulerInterval().String(),
				"backoff_max":        config.BackoffMax().String(),
				"queue_capacity":     config.QueueCapacity(),
				"health_interval":    config.HealthInterval().String(),
				"log_level":          config.LogLevel(),
			})
		},
	})

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
