package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/sunny-gateway/internal/events"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

func newEventsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the gateway's payment event streams",
	}

	var kafkaBrokers, natsURL, groupID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print payment events until interrupted",
		Long: `tail follows payment.state.changed on Kafka (--kafka) or the
terminal-outcome subject on NATS (--nats).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			show := func(e models.PaymentEvent) error {
				fmt.Fprintf(a.out, "%s %s %s -> %s %s\n",
					e.Timestamp.Format("15:04:05"), e.PaymentID, e.PreviousStatus, e.Status, e.Message)
				return nil
			}

			switch {
			case kafkaBrokers != "":
				return events.ConsumeStateChanges(ctx, strings.Split(kafkaBrokers, ","), groupID, show)

			case natsURL != "":
				conn, err := nats.Connect(natsURL)
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
				defer conn.Close()

				sub, err := events.SubscribeTerminal(conn, show)
				if err != nil {
					return err
				}
				defer sub.Unsubscribe()
				<-ctx.Done()
				return nil

			default:
				return errors.New("one of --kafka or --nats is required")
			}
		},
	}
	tail.Flags().StringVar(&kafkaBrokers, "kafka", "", "Comma-separated Kafka brokers")
	tail.Flags().StringVar(&natsURL, "nats", "", "NATS server URL")
	tail.Flags().StringVar(&groupID, "group", "sunny-cli", "Kafka consumer group")

	cmd.AddCommand(tail)
	return cmd
}
