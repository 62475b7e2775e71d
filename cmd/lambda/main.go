package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/liavyona/covid-stats-etl/pkg"
)

var pipeline *pkg.Pipeline

type response struct {
	RunID   string `json:"run_id"`
	Outcome string `json:"outcome"`
	Fetched int    `json:"fetched"`
	Loaded  int    `json:"loaded"`
}

func init() {
	cfg, err := pkg.LoadConfig(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.LogFormat = pkg.LogFormatJSON
	logger, err := pkg.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log configuration")
	}
	pipeline, err = pkg.BuildPipeline(cfg, logger)
	if err != nil {
		log.Fatal().Str("driver", cfg.DBDriver).Err(err).Msg("Error while building the ETL pipeline")
	}
}

func loadCountryStats(ctx context.Context) (response, error) {
	report, err := pipeline.Run(ctx)
	resp := response{
		RunID:   report.RunID,
		Outcome: string(report.Outcome),
		Fetched: report.Fetched,
		Loaded:  report.Loaded,
	}
	if err != nil {
		return resp, fmt.Errorf("run %s %s: %w", report.RunID, report.Outcome, err)
	}
	return resp, nil
}

func main() {
	lambda.Start(loadCountryStats)
}
