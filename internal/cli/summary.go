package cli

import (
	"github.com/ppiankov/carbonintel/internal/query"
	"github.com/ppiankov/carbonintel/internal/report"
	"github.com/spf13/cobra"
)

var (
	summaryFlags requestFlags
	alertsFlags  requestFlags
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the records inside a time window",
	Long: `Summary aggregates the window: counts by kind, total funding, high-score
counts, a recent sub-window, the top records by each score and the alert list.

Example:
  carbonintel summary
  carbonintel summary --days 30 --limit 10 --format markdown`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List prioritized alerts for a time window",
	Long: `Alerts flags records worth acting on: high-relevance commitments announced
in the recent sub-window, funding events that are competitive threats, and
funding events that are partnership opportunities. Newest first.

Example:
  carbonintel alerts --days 14
  carbonintel alerts --format json`,
	Args: cobra.NoArgs,
	RunE: runAlerts,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(alertsCmd)
	summaryFlags.register(summaryCmd.Flags(), false)
	alertsFlags.register(alertsCmd.Flags(), false)
}

func runSummary(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(summaryFlags.format)
	if err != nil {
		return err
	}
	req, err := summaryFlags.request()
	if err != nil {
		return err
	}

	env, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := query.New(env.store, env.cfg.Query, env.logger).Summarize(cmd.Context(), req)
	if err != nil {
		return err
	}
	return report.NewRenderer(cmd.OutOrStdout(), format).Summary(sum)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(alertsFlags.format)
	if err != nil {
		return err
	}
	req, err := alertsFlags.request()
	if err != nil {
		return err
	}

	env, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	alerts, total, err := query.New(env.store, env.cfg.Query, env.logger).Alerts(cmd.Context(), req)
	if err != nil {
		return err
	}
	if alertsFlags.limit > 0 && len(alerts) > alertsFlags.limit {
		alerts = alerts[:alertsFlags.limit]
	}
	return report.NewRenderer(cmd.OutOrStdout(), format).Alerts(alerts, total)
}
