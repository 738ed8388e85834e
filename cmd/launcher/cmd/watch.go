package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"token-launcher/internal/clients"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print launch events from NATS as they arrive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := services()
		if err != nil {
			return err
		}
		if c.NATSClient == nil {
			return fmt.Errorf("nats.url is not configured or NATS is unreachable")
		}

		sub, err := c.NATSClient.SubscribeLaunchEvents(func(event *clients.LaunchEvent, subject string) {
			line := fmt.Sprintf("%s %s %s %s", event.Timestamp.Format("15:04:05"), subject, event.TxHash, event.Reason)
			switch event.Type {
			case clients.EventStepFailed:
				color.Red("%s", line)
			case clients.EventRunCompleted:
				color.Green("%s", line)
			default:
				color.Cyan("%s", line)
			}
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		<-cmd.Context().Done()
		return nil
	},
}
