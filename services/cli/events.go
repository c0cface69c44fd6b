package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fitverse/pkg/bus"
	"fitverse/pkg/workouts"
)

func newEventsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Workout activity published over NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newEventsWatchCommand(a))
	return cmd
}

func newEventsWatchCommand(a *app) *cobra.Command {
	var (
		raw     bool
		durable string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print workout events as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.NATSURL == "" {
				return errors.New("nats_url is not configured (set FITVERSE_NATS_URL)")
			}
			ctx := cmd.Context()

			b, err := bus.Connect(a.cfg.NATSURL, "fitversectl", a.logger)
			if err != nil {
				return err
			}
			a.bus = b

			sub, err := b.Subscribe(ctx, workouts.SubjectAll, durable, func(_ context.Context, data []byte) error {
				if raw {
					a.printf("%s\n", data)
					return nil
				}
				var ev workouts.Event
				if err := json.Unmarshal(data, &ev); err != nil {
					a.logger.Warn().Err(err).Msg("skip malformed event")
					return nil
				}
				a.printf("%s\n", formatEvent(ev))
				return nil
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			fmt.Fprintf(a.io.Err, "Watching %s (Ctrl-C to stop)\n", workouts.SubjectAll)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the JSON payloads unchanged")
	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name to resume from (new events only when empty)")
	return cmd
}

func formatEvent(ev workouts.Event) string {
	parts := []string{ev.At.Local().Format(time.DateTime), ev.Action}
	if ev.WorkoutID != "" {
		parts = append(parts, ev.WorkoutID)
	}
	if ev.Name != "" {
		parts = append(parts, fmt.Sprintf("%q", ev.Name))
	}
	if ev.Duration != "" {
		parts = append(parts, ev.Duration)
	}
	if ev.Status != "" {
		parts = append(parts, ev.Status)
	}
	if ev.UserID != "" {
		parts = append(parts, "user="+ev.UserID)
	}
	return strings.Join(parts, "  ")
}
