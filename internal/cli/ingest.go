package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/carbonintel/internal/extract"
	"github.com/ppiankov/carbonintel/internal/pipeline"
	"github.com/ppiankov/carbonintel/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestText     string
	ingestURL      string
	ingestSource   string
	ingestObserved string
	metricsFile    string
	ingestFormat   string
	ingestTimeout  time.Duration
	ingestWorkers  int
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [file.jsonl]",
	Short: "Extract, deduplicate and score announcement snippets",
	Long: `Ingest reads snippets and runs them through the pipeline:
- Extract a commitment or funding record from each snippet (in parallel)
- Merge it with any stored record for the same event
- Score relevance, competitive threat and partnership opportunity
- Persist the result

Input is JSON Lines, one {"text", "source_url", "source_name", "observed_at"}
object per line. Blank and # comment lines are skipped. Use "-" for stdin.

Example:
  carbonintel ingest clippings.jsonl
  carbonintel ingest - < clippings.jsonl --metrics-file /var/lib/node_exporter/carbonintel.prom
  carbonintel ingest --text "Persefoni raises $101M Series B led by Lightspeed" --observed 2021-11-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	// Single snippet flags
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest one snippet given inline")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "source URL of the inline snippet")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source name of the inline snippet")
	ingestCmd.Flags().StringVar(&ingestObserved, "observed", "", "observation time of the inline snippet (RFC 3339 or YYYY-MM-DD)")

	// Run flags
	ingestCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write a Prometheus textfile snapshot after the run")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "table", "run report format (table, json, markdown)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "total timeout for the run")
	ingestCmd.Flags().IntVar(&ingestWorkers, "concurrency", 0, "number of extraction workers (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(ingestFormat)
	if err != nil {
		return err
	}

	snippets, err := readIngestInput(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), ingestTimeout)
	defer cancel()

	env, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if ingestWorkers > 0 {
		env.cfg.Concurrency.Workers = ingestWorkers
	}

	metrics := pipeline.NewMetrics(nil)
	p, err := pipeline.NewPipeline(env.cfg, env.store,
		pipeline.WithLogger(env.logger),
		pipeline.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	env.logger.Info("ingest started",
		zap.Int("snippets", len(snippets)),
		zap.Int("workers", env.cfg.Concurrency.Workers),
		zap.String("store", env.cfg.Store.Driver),
	)

	rep, runErr := p.Ingest(ctx, snippets)

	// A partial run still gets its metrics written
	if path := metricsPath(env.cfg.Metrics.Textfile); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			env.logger.Warn("write metrics", zap.String("path", path), zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("ingest failed: %w", runErr)
	}

	return report.NewRenderer(cmd.OutOrStdout(), format).Run(rep)
}

func readIngestInput(args []string) ([]extract.Snippet, error) {
	if ingestText != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("give either a file or --text, not both")
		}
		observed, err := pipeline.ParseObserved(ingestObserved)
		if err != nil {
			return nil, err
		}
		return []extract.Snippet{{
			Text:       ingestText,
			SourceURL:  ingestURL,
			SourceName: ingestSource,
			ObservedAt: observed,
		}}, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("nothing to ingest: give a JSON Lines file, \"-\" for stdin, or --text")
	}
	if args[0] == "-" {
		return pipeline.ReadSnippets(os.Stdin)
	}
	return pipeline.ReadSnippetsFromFile(args[0])
}

func metricsPath(configured string) string {
	if metricsFile != "" {
		return metricsFile
	}
	return configured
}
