package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
)

// ingestCmd groups the offline pipeline stages
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector index from the dataset",
	Long: `Run the offline pipeline. Each stage reads the previous stage's file
from the data directory, so stages can be rerun one at a time.

  download  dataset rows            -> raw.json
  clean     raw.json                -> cleaned.json
  chunk     cleaned.json            -> chunks.json
  embed     chunks.json             -> vector store (replaced)
  all       every stage in order`,
}

func init() {
	ingestCmd.AddCommand(stageCmd("download", "Download the dataset split to raw.json", func(ctx context.Context, p *ingest.Pipeline) error {
		_, err := p.Download(ctx)
		return err
	}))
	ingestCmd.AddCommand(stageCmd("clean", "Rebuild documents from raw.json", func(ctx context.Context, p *ingest.Pipeline) error {
		_, err := p.Clean(ctx)
		return err
	}))
	ingestCmd.AddCommand(stageCmd("chunk", "Split and deduplicate cleaned documents", func(ctx context.Context, p *ingest.Pipeline) error {
		_, err := p.Chunk(ctx)
		return err
	}))
	ingestCmd.AddCommand(stageCmd("embed", "Embed chunks and replace the vector store", func(ctx context.Context, p *ingest.Pipeline) error {
		_, err := p.Embed(ctx)
		return err
	}))
	ingestCmd.AddCommand(stageCmd("all", "Run every stage in order", func(ctx context.Context, p *ingest.Pipeline) error {
		return p.All(ctx)
	}))
}

// stageCmd builds a subcommand that runs one pipeline step.
func stageCmd(name, short string, step func(context.Context, *ingest.Pipeline) error) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			p, sync, err := newPipeline(ctx, cmd)
			if err != nil {
				return err
			}
			defer sync()
			return step(ctx, p)
		},
	}
}

// newPipeline loads configuration and builds a pipeline that prints
// summaries to the command's stdout and logs to stderr. The returned func
// flushes logs and telemetry.
func newPipeline(ctx context.Context, cmd *cobra.Command) (*ingest.Pipeline, func(), error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if dataDir != "" {
		cfg.Ingest.DataDir = dataDir
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger, err := logging.New(cfg.Logging, true, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if derr := tel.Degraded(); derr != nil {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(derr))
	}

	p := ingest.New(cfg, cmd.OutOrStdout(), logger.Underlying().Named("ingest"))
	return p, func() {
		_ = tel.Shutdown(context.Background())
		_ = logger.Sync()
	}, nil
}
