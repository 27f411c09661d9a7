package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pdfmerger/internal/bus"
)

var (
	eventsNATSURL string
	eventsSubject string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print finished-job events from NATS",
	Long: `Subscribe to the subject the server publishes finished jobs on and
print one JSON line per event until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := bus.Connect(eventsNATSURL)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer client.Close()

		enc := json.NewEncoder(os.Stdout)
		sub, err := client.SubscribeJSON(eventsSubject, func(ctx context.Context, data []byte) {
			var evt bus.JobEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: bad event: %v\n", err)
				return
			}
			_ = enc.Encode(evt)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", eventsSubject, err)
		}
		defer func() { _ = sub.Unsubscribe() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(os.Stderr, "Listening on %s\n", eventsSubject)
		<-ctx.Done()
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsNATSURL, "nats-url", envOr("PDF_MERGER_NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	eventsCmd.Flags().StringVar(&eventsSubject, "subject", envOr("PDF_MERGER_NATS_SUBJECT", "pdfmerger.jobs.finished"), "subject to subscribe to")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
