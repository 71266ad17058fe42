package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"soundstage.dev/internal/tracking"
)

// statsReport is the --json output of the stats command
type statsReport struct {
	Summary *tracking.Summary    `json:"summary"`
	Clips   []tracking.ClipStats `json:"clips"`
}

// newStatsCommand creates the stats command
func newStatsCommand() *cobra.Command {
	var (
		since   string
		preset  string
		session string
		kind    string
		group   string
		limit   int
		asJSON  bool
	)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the playback journal",
		Long: `Summarize the playback journal: how often each clip was requested and how often it finished.

Examples:
  soundstage stats                      # everything journaled
  soundstage stats --preset today       # today only
  soundstage stats --since "3 days ago" # natural language start time
  soundstage stats --kind music --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := tracking.QueryFilter{
				DatePreset: preset,
				SessionID:  session,
				Kind:       kind,
				Group:      group,
				Limit:      limit,
			}
			return runStats(cmd, filter, since, asJSON)
		},
	}

	statsCmd.Flags().StringVar(&since, "since", "", "Start time, e.g. \"yesterday\" or \"2 hours ago\"")
	statsCmd.Flags().StringVar(&preset, "preset", "", "Date preset (today, yesterday, week, month, all)")
	statsCmd.Flags().StringVar(&session, "session", "", "Only this session id")
	statsCmd.Flags().StringVar(&kind, "kind", "", "Only this sound kind (world, ui, music)")
	statsCmd.Flags().StringVar(&group, "group", "", "Only this volume group")
	statsCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of clips to show")
	statsCmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return statsCmd
}

func runStats(cmd *cobra.Command, filter tracking.QueryFilter, since string, asJSON bool) error {
	slog.Debug("running stats command", "since", since, "preset", filter.DatePreset, "kind", filter.Kind)

	cli, err := cliFromContext(cmd.Context())
	if err != nil {
		return err
	}

	cfg, err := cli.prepare(cmd)
	if err != nil {
		return err
	}

	if since != "" {
		start, err := tracking.ParseSince(since, cli.now())
		if err != nil {
			return err
		}
		filter.Since = &start
	}

	cli.initializeTracking(cfg)
	if cli.trackingDB == nil {
		return fmt.Errorf("playback tracking is not enabled or the journal is not available")
	}

	summary, err := tracking.GetSummary(cli.trackingDB, filter)
	if err != nil {
		return err
	}
	clips, err := tracking.Stats(cli.trackingDB, filter)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statsReport{Summary: summary, Clips: clips})
	}

	printStats(cmd.OutOrStdout(), summary, clips)
	return nil
}

func printStats(w io.Writer, summary *tracking.Summary, clips []tracking.ClipStats) {
	fmt.Fprintf(w, "%d sessions, %d sounds requested, %d finished, %d distinct clips\n",
		summary.Sessions, summary.Requested, summary.Ended, summary.UniqueClips)
	if len(clips) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIP\tKIND\tREQUESTED\tFINISHED")
	for _, c := range clips {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", c.Clip, c.Kind, c.Requested, c.Ended)
	}
	tw.Flush()
}
