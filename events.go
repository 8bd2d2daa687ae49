package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"ms-attendance/internal/kafka"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published attendance events",
	}

	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print every event published to KAFKA_TOPIC as one JSON line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := bootstrap()
			defer log.Close()
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("KAFKA_BROKERS is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, group, log)
			defer consumer.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return consumer.Run(ctx, func(ev kafka.ReceivedEvent) error {
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("write event: %w", err)
				}
				return nil
			})
		},
	}
	tail.Flags().StringVar(&group, "group", "ms-attendance-tail", "Kafka consumer group")
	cmd.AddCommand(tail)
	return cmd
}
