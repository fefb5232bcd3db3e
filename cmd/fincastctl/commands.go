package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/internal/domain/models"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
)

type options struct {
	configPath string
	envFile    string
}

// predictorFactory builds the in-process pipeline; tests replace it.
type predictorFactory func(cfg *config.Config) (*usecase.Predictor, func(), error)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(di.InitializePredictor)
}

func newRootCmdWith(build predictorFactory) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "fincastctl",
		Short:         "Run FinCast forecasts from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "config file path")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")

	root.AddCommand(newPredictCmd(opts, build), newInstrumentsCmd(opts, build))
	return root
}

func newPredictCmd(opts *options, build predictorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <ticker>",
		Short: "Forecast the next closing price of a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, cleanup, err := setup(opts, build)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
			defer cancel()
			resp, err := p.Predict(ctx, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", models.KindOf(err), err)
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newInstrumentsCmd(opts *options, build predictorFactory) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "List instruments with a complete model and scaler pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, p, cleanup, err := setup(opts, build)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := p.Instruments()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tKEY\tCURRENCY")
			for _, in := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", in.Ticker, in.Key, in.Currency)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func setup(opts *options, build predictorFactory) (*config.Config, *usecase.Predictor, func(), error) {
	cfg, err := config.LoadWithEnv(opts.configPath, opts.envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	// stdout carries command output
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	p, cleanup, err := build(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, p, cleanup, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
