package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"erizoagent/internal/app"
	"erizoagent/internal/domain"
	"erizoagent/internal/infra/config"
)

type cliOptions struct {
	configPath string
	format     string
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		configPath: domain.DefaultConfigPath,
		format:     config.FormatTOML,
	}

	root := &cobra.Command{
		Use:           "erizo-agent",
		Short:         "Erizo worker agent for a media cluster node",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to agent config file (TOML)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(&opts),
		newValidateCmd(&opts),
		newConfigCmd(&opts),
	)
	return root
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			bootstrap, err := zap.NewProduction()
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig(ctx, opts.configPath, cmd.Flags(), bootstrap)
			if err != nil {
				return err
			}

			logger, err := app.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			logger = logger.With(zap.String("version", app.Version))

			agent, cleanup, err := app.InitializeAgent(ctx, cfg, logger)
			if err != nil {
				logger.Error("agent initialization failed", zap.Error(err))
				return err
			}
			defer cleanup()

			if err := agent.Run(ctx); err != nil {
				logger.Error("agent terminated", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the agent configuration without joining the cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.ValidateConfig(cmd.Context(), opts.configPath, cmd.Flags(), nil); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", opts.configPath)
			return err
		},
	}
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration after defaults and overrides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig(cmd.Context(), opts.configPath, cmd.Flags(), nil)
			if err != nil {
				return err
			}
			out, err := config.Render(cfg, opts.format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	printCmd.Flags().StringVar(&opts.format, "format", opts.format, "output format (toml or yaml)")

	cmd.AddCommand(printCmd)
	return cmd
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
