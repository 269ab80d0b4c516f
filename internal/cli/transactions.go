package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

func newTransactionsCommand(a *app) *cobra.Command {
	var (
		status, method, merchant string
		from, to                 string
		filter                   models.TransactionFilter
	)

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List payments, newest first",
		Example: `  sunny transactions --status completed --limit 10
  sunny transactions --method mobile_money --from 2026-03-01 --to 2026-04-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			filter.Status = models.Status(status)
			filter.Method = models.Method(method)
			filter.MerchantID = merchant

			var err error
			if filter.From, err = parseTime(from); err != nil {
				return err
			}
			if filter.To, err = parseTime(to); err != nil {
				return err
			}

			list, err := a.client.Transactions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printTransactions(a.out, list)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only payments in this status")
	cmd.Flags().StringVar(&method, "method", "", "Only payments made with this method")
	cmd.Flags().StringVar(&merchant, "merchant", "", "Only payments of this merchant (defaults to the configured one)")
	cmd.Flags().StringVar(&from, "from", "", "Created at or after (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Created before (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().IntVar(&filter.Limit, "limit", models.DefaultTransactionLimit, "Page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Entries to skip")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time must be YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t, nil
}

func printTransactions(w io.Writer, list *models.TransactionList) {
	if len(list.Transactions) == 0 {
		fmt.Fprintf(w, "No transactions found (%d total)\n", list.Total)
		return
	}
	for _, tx := range list.Transactions {
		fmt.Fprintf(w, "%s  %-9s  %-13s  %s %s  %s\n",
			tx.TransactionID, tx.Status, tx.PaymentMethod, tx.Amount, tx.Currency,
			tx.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Showing %d-%d of %d\n", list.Offset+1, list.Offset+len(list.Transactions), list.Total)
}
