package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/sunny-gateway/internal/bulk"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/paystatus"
	"github.com/akylbek/payment-system/sunny-gateway/internal/sdk"
)

func newBulkCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Validate and run bulk payment files (CSV or XLSX)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a bulk file without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readBulkFile(args[0])
			if err != nil {
				return err
			}
			printRows(a.out, rows)
			if models.Summarize(rows).Errors > 0 {
				return fmt.Errorf("%s has invalid rows", args[0])
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "start <file>",
		Short: "Submit a bulk file and follow the job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readBulkFile(args[0])
			if err != nil {
				return err
			}
			if models.Summarize(rows).Errors > 0 {
				printRows(a.out, rows)
				return fmt.Errorf("%s has invalid rows, nothing submitted", args[0])
			}
			if err := a.loadSDK(); err != nil {
				return err
			}
			tracker, err := a.client.StartBulk(cmd.Context(), rows, a.bulkHooks())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Job %s started with %d payments\n", tracker.Job().JobID, len(rows))
			return a.followBulk(cmd.Context(), tracker)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow an existing bulk job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			tracker, err := a.client.WatchBulk(cmd.Context(), args[0], a.bulkHooks())
			if err != nil {
				return err
			}
			return a.followBulk(cmd.Context(), tracker)
		},
	})
	return cmd
}

func readBulkFile(path string) ([]models.BulkRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bulk.Parse(path, f)
}

func printRows(w io.Writer, rows []models.BulkRow) {
	for _, row := range rows {
		if row.Status == models.RowValid {
			continue
		}
		fmt.Fprintf(w, "row %d %s: %s\n", row.ID, row.Status, strings.Join(row.Errors, "; "))
	}
	s := models.Summarize(rows)
	fmt.Fprintf(w, "%d valid, %d warnings, %d errors\n", s.Valid, s.Warnings, s.Errors)
}

func (a *app) bulkHooks() sdk.BulkHooks {
	return sdk.BulkHooks{
		OnProgress: func(job models.BulkJobResponse) {
			fmt.Fprintf(a.out, "%s %s %d%%\n", job.JobID, job.Status, job.Progress)
		},
		OnDegraded: func(job models.BulkJobResponse) {
			fmt.Fprintf(a.out, "%s status unknown, retrying\n", job.JobID)
		},
	}
}

func (a *app) followBulk(ctx context.Context, tracker *paystatus.BulkTracker) error {
	defer tracker.Close()

	job, err := tracker.Wait(ctx)
	if err != nil {
		return err
	}
	if job.Status == models.BulkFailed {
		return fmt.Errorf("bulk job %s failed: %s", job.JobID, job.Error)
	}
	fmt.Fprintf(a.out, "Job %s completed, %d payments processed\n", job.JobID, job.Processed)
	return nil
}
