package cli

import (
	"fmt"

	"github.com/ppiankov/carbonintel/internal/model"
	"github.com/ppiankov/carbonintel/internal/query"
	"github.com/ppiankov/carbonintel/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// requestFlags are the window and filter flags shared by query, summary and alerts
type requestFlags struct {
	days           int
	kind           string
	commitmentType string
	sector         string
	minRelevance   int
	minThreat      int
	minOpportunity int
	limit          int
	format         string
}

func (f *requestFlags) register(fs *pflag.FlagSet, filters bool) {
	fs.IntVar(&f.days, "days", 0, "time window in days (clamped to the configured bounds; default from config)")
	fs.IntVar(&f.limit, "limit", 0, "maximum number of results; in summaries the length of each top list")
	fs.StringVar(&f.format, "format", "table", "output format (table, json, markdown)")
	if !filters {
		return
	}
	fs.StringVar(&f.kind, "kind", "", "record kind (commitment, funding)")
	fs.StringVar(&f.commitmentType, "type", "", "commitment type (net-zero, carbon-negative, scope-reduction, registry-partnership, other)")
	fs.StringVar(&f.sector, "sector", "", "funding sector tag")
	fs.IntVar(&f.minRelevance, "min-relevance", 0, "minimum relevance score")
	fs.IntVar(&f.minThreat, "min-threat", 0, "minimum competitive threat score")
	fs.IntVar(&f.minOpportunity, "min-opportunity", 0, "minimum partnership opportunity score")
}

// request converts the flags into a query request
func (f *requestFlags) request() (query.Request, error) {
	req := query.Request{
		WindowDays:     f.days,
		Sector:         f.sector,
		MinRelevance:   f.minRelevance,
		MinThreat:      f.minThreat,
		MinOpportunity: f.minOpportunity,
		Limit:          f.limit,
	}

	switch model.RecordKind(f.kind) {
	case "", model.KindCommitment, model.KindFunding:
		req.Kind = model.RecordKind(f.kind)
	default:
		return req, fmt.Errorf("unknown kind %q (want commitment or funding)", f.kind)
	}

	if f.commitmentType != "" {
		ct, ok := model.ParseCommitmentType(f.commitmentType)
		if !ok {
			return req, fmt.Errorf("unknown commitment type %q", f.commitmentType)
		}
		req.CommitmentType = ct
	}

	for _, v := range []int{f.minRelevance, f.minThreat, f.minOpportunity} {
		if v < 0 || v > 100 {
			return req, fmt.Errorf("score filters must be within 0-100, got %d", v)
		}
	}
	if f.limit < 0 {
		return req, fmt.Errorf("limit must not be negative")
	}
	return req, nil
}

var queryFlags requestFlags

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List records announced inside a time window",
	Long: `Query lists stored records whose announcement date falls inside the last
--days days, newest first.

Example:
  carbonintel query --days 30
  carbonintel query --kind funding --min-threat 60 --format json
  carbonintel query --kind commitment --type net-zero --format markdown`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryFlags.register(queryCmd.Flags(), true)
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(queryFlags.format)
	if err != nil {
		return err
	}
	req, err := queryFlags.request()
	if err != nil {
		return err
	}

	env, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := query.New(env.store, env.cfg.Query, env.logger).Query(cmd.Context(), req)
	if err != nil {
		return err
	}
	return report.NewRenderer(cmd.OutOrStdout(), format).Records(records)
}
