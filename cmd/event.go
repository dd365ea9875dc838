package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/courier-fulfillment/internal/core/events"
	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event through the event bus and the configured broker, to check topic wiring end to end.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		log := logger.LoggerWrapper()

		bus, sink, err := newEventBus(cfg.Events, log)
		if err != nil {
			return err
		}
		defer sink.Close()

		eventType := args[0]
		bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			log.Info("test handler received event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})

		testEvent := events.BaseEvent{
			ID:        fmt.Sprintf("test-%d", time.Now().UnixNano()),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}

		log.Info("publishing test event", "event_type", eventType, "event_id", testEvent.ID, "broker", cfg.Events.Broker)
		if err := bus.PublishSync(cmd.Context(), testEvent); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}

		log.Info("test event published")
		return nil
	},
}

var eventData string

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
