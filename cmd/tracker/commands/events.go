package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/infrastructure/messaging"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print tracker events from Redis as JSON lines",
		Long: `Events subscribes to the Redis events channel and prints every envelope
published by other tracker processes, one JSON object per line, until
interrupted. Redis must be reachable even if REDIS_ENABLED is false; the
relational store is not opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts, bootstrapOptions{
				quiet:        true,
				requireRedis: true,
				skipStore:    true,
				logOutput:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			sub := messaging.NewRedisSubscriber(a.redis, a.cfg.Redis.Channel, a.log)
			a.log.Info("listening for events", logger.String("channel", a.cfg.Redis.Channel))

			return sub.Run(cmd.Context(), func(envelope shared.EventEnvelope) {
				line, err := json.Marshal(envelope)
				if err != nil {
					a.log.Warn("failed to encode event", logger.Err(err))
					return
				}
				fmt.Fprintln(out, string(line))
			})
		},
	}
}
