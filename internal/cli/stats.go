package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unclebandit/newsflow/internal/app"
	appErrors "github.com/unclebandit/newsflow/internal/errors"
	"github.com/unclebandit/newsflow/internal/model"
)

func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var withEvents bool

	cmd := &cobra.Command{
		Use:           "stats <campaignId>",
		Short:         "Show open and click stats for a campaign",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				stats, err := a.Tracking.QueryCampaignStats(ctx, model.ParseID(args[0]))
				if err != nil {
					return out.Fail(ExitCommandError, err)
				}
				if !withEvents {
					stats.Events = nil
				}
				return out.Success(stats, func(w io.Writer) {
					fmt.Fprintf(w, "Campaign %s\n", stats.CampaignID)
					fmt.Fprintf(w, "  Opens:  %d total, %d unique\n", stats.TotalOpens, stats.UniqueOpens)
					fmt.Fprintf(w, "  Clicks: %d total, %d unique\n", stats.TotalClicks, stats.UniqueClicks)
					if len(stats.OpenedBy) > 0 {
						fmt.Fprintf(w, "  Opened by:  %s\n", strings.Join(stats.OpenedBy, ", "))
					}
					if len(stats.ClickedBy) > 0 {
						fmt.Fprintf(w, "  Clicked by: %s\n", strings.Join(stats.ClickedBy, ", "))
					}
					for _, ev := range stats.Events {
						url := ""
						if ev.URL != nil {
							url = " " + *ev.URL
						}
						fmt.Fprintf(w, "  %s %-5s %s%s\n", ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.Email, url)
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&withEvents, "events", false, "include the matching events")
	return cmd
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <campaignId>",
		Short: "Rebuild a campaign's open and click counters from the tracking log",
		Long: `Replay the campaign's tracking events through the first-open and
first-click rules. Only missing timestamps are filled in; counters never go
down.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				id := model.ParseID(args[0])
				changes, err := a.Tracking.Reconcile(ctx, id)
				if appErrors.IsCampaignNotFound(err) {
					return out.Fail(ExitCommandError, err)
				}
				if err != nil {
					return out.Fail(ExitFailure, err)
				}
				return out.Success(map[string]any{"campaignId": id, "changes": changes}, func(w io.Writer) {
					fmt.Fprintf(w, "Campaign %s: %d changes\n", id, changes)
				})
			})
		},
	}
}
