package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unclebandit/newsflow/internal/app"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/service"
)

// BatchSummary is one row of `batches list`.
type BatchSummary struct {
	Index       int      `json:"index"`
	ID          model.ID `json:"id"`
	CampaignID  model.ID `json:"campaignId"`
	Subject     string   `json:"subject"`
	Subscribers int      `json:"subscribers"`
}

// batchRequest reads the fields a pending batch needs to be sent. Batches
// are written by the dashboard; anything else they carry is ignored here.
type batchRequest struct {
	ID model.ID `json:"id"`
	service.SendRequest
}

func parseBatch(raw model.PendingBatch) (batchRequest, error) {
	var b batchRequest
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("malformed batch: %w", err)
	}
	return b, nil
}

func NewBatchesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect and send pending batches",
	}
	cmd.AddCommand(newBatchesListCommand(opts))
	cmd.AddCommand(newBatchesSendCommand(opts))
	return cmd
}

func newBatchesListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List pending batches",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				batches, err := a.Batches.List(ctx)
				if err != nil {
					return out.Fail(ExitCommandError, err)
				}

				rows := make([]BatchSummary, 0, len(batches))
				for i, raw := range batches {
					row := BatchSummary{Index: i}
					if b, err := parseBatch(raw); err == nil {
						row.ID = b.ID
						row.CampaignID = b.CampaignID
						row.Subject = b.Subject
						row.Subscribers = len(b.Subscribers)
					}
					rows = append(rows, row)
				}

				return out.Success(rows, func(w io.Writer) {
					if len(rows) == 0 {
						fmt.Fprintln(w, "No pending batches")
						return
					}
					for _, r := range rows {
						fmt.Fprintf(w, "[%d] id=%s campaign=%s subscribers=%d subject=%q\n",
							r.Index, r.ID, r.CampaignID, r.Subscribers, r.Subject)
					}
				})
			})
		},
	}
}

func newBatchesSendCommand(opts *RootOptions) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "send <index|id>",
		Short: "Send a pending batch and remove it",
		Long: `Send a pending batch through the paced orchestrator.

The batch is chosen by its position in the list or by its id. Once sent it is
removed from the pending list unless --keep is given. Deliveries are recorded
on the batch's campaign.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				return runBatchSend(ctx, a, out, args[0], keep)
			})
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the batch in the pending list after sending")
	return cmd
}

func runBatchSend(ctx context.Context, a *app.App, out *OutputFormatter, selector string, keep bool) error {
	batches, err := a.Batches.List(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, err)
	}

	index := findBatch(batches, selector)
	if index < 0 {
		return out.Fail(ExitCommandError, fmt.Errorf("no pending batch %q", selector))
	}
	b, err := parseBatch(batches[index])
	if err != nil {
		return out.Fail(ExitCommandError, err)
	}
	if len(b.Subscribers) == 0 {
		return out.Fail(ExitCommandError, fmt.Errorf("batch %q has no subscribers", selector))
	}

	result := a.Newsletter.SendCampaign(ctx, b.SendRequest)
	if err := a.Newsletter.RecordDeliveries(ctx, b.CampaignID, result.SentRecipients); err != nil {
		fmt.Fprintf(out.Writer, "warning: deliveries not recorded: %v\n", err)
	}

	if !keep {
		// Match on content; the list may have been edited while we sent.
		sent := batches[index]
		if _, err := a.Batches.Remove(ctx, func(_ int, pb model.PendingBatch) bool {
			return string(pb) == string(sent)
		}); err != nil {
			return out.Fail(ExitFailure, fmt.Errorf("batch sent but not removed: %w", err))
		}
	}

	if err := out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Sent %d, failed %d\n", result.Sent, result.Failed)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Email, e.Error)
		}
	}); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d sends failed", result.Failed))
	}
	return nil
}

// findBatch resolves an id first, then a list position.
func findBatch(batches []model.PendingBatch, selector string) int {
	want := model.ParseID(selector)
	for i, raw := range batches {
		if b, err := parseBatch(raw); err == nil && !b.ID.IsZero() && b.ID.Equal(want) {
			return i
		}
	}
	if i, err := strconv.Atoi(selector); err == nil && i >= 0 && i < len(batches) {
		return i
	}
	return -1
}
