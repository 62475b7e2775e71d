package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/liavyona/covid-stats-etl/pkg"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	var envFiles []string
	exitCode := pkg.ExitOK

	rootCmd := &cobra.Command{
		Use:           "covid-etl",
		Short:         "Load today's per-country COVID-19 statistics into the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := run(cmd.Context(), envFiles)
			exitCode = code
			return err
		},
	}
	rootCmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file to load before reading the environment (default .env if present)")
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == pkg.ExitOK {
			exitCode = pkg.ExitSetupFailed
		}
	}
	return exitCode
}

func run(ctx context.Context, envFiles []string) (int, error) {
	if err := pkg.LoadEnvFiles(envFiles...); err != nil {
		return pkg.ExitSetupFailed, err
	}
	cfg, err := pkg.LoadConfig(os.Getenv)
	if err != nil {
		return pkg.ExitSetupFailed, err
	}
	logger, err := pkg.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return pkg.ExitSetupFailed, err
	}
	logger.Debug().Str("config", cfg.String()).Msg("Loaded configuration")

	pipeline, err := pkg.BuildPipeline(cfg, logger)
	if err != nil {
		return pkg.ExitSetupFailed, err
	}

	// Failures are already logged by the pipeline; only the status carries them out.
	report, _ := pipeline.Run(ctx)
	return report.ExitCode(), nil
}
