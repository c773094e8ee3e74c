package cli

import (
	"fmt"

	"github.com/ppiankov/carbonintel/internal/pipeline"
	"github.com/ppiankov/carbonintel/internal/report"
	"github.com/spf13/cobra"
)

var (
	explainFormat string
	rescoreFormat string
)

// explainCmd represents the explain command
var explainCmd = &cobra.Command{
	Use:   "explain <id>",
	Short: "Show the signals behind a record's scores",
	Long: `Explain recomputes a stored record's scores with the configured rubric and
lists every contributing signal with its points and formula.

Example:
  carbonintel explain 6f0c1f0e-7a43-5d1b-9f0e-2b8e4c3d9a10
  carbonintel explain 6f0c1f0e-7a43-5d1b-9f0e-2b8e4c3d9a10 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

// rescoreCmd represents the rescore command
var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute scores for every stored record",
	Long: `Rescore applies the current rubric and clock to every stored record and
writes back the records whose scores changed. Run it after editing the rubric
or periodically so that competitive threat decays with age.`,
	Args: cobra.NoArgs,
	RunE: runRescore,
}

func init() {
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(rescoreCmd)
	explainCmd.Flags().StringVar(&explainFormat, "format", "table", "output format (table, json, markdown)")
	rescoreCmd.Flags().StringVar(&rescoreFormat, "format", "table", "run report format (table, json, markdown)")
}

func runExplain(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(explainFormat)
	if err != nil {
		return err
	}

	env, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := pipeline.NewPipeline(env.cfg, env.store, pipeline.WithLogger(env.logger))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	rec, breakdown, err := p.Explain(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return report.NewRenderer(cmd.OutOrStdout(), format).Breakdown(rec, breakdown)
}

func runRescore(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(rescoreFormat)
	if err != nil {
		return err
	}

	env, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := pipeline.NewMetrics(nil)
	p, err := pipeline.NewPipeline(env.cfg, env.store,
		pipeline.WithLogger(env.logger),
		pipeline.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	rep, err := p.Rescore(cmd.Context())
	if err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}
	if path := env.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return err
		}
	}
	return report.NewRenderer(cmd.OutOrStdout(), format).Run(rep)
}
