package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// streamConfigs maps each partition kind to the stream holding its inbox
// subjects.
var streamConfigs = []jetstream.StreamConfig{
	{Name: "shard", Subjects: []string{"shard.>"}},
	{Name: "leaderboard", Subjects: []string{"leaderboard.>"}},
	{Name: "player", Subjects: []string{"player.>"}},
}

// InitializeStreams creates the partition streams in JetStream during startup.
func InitializeStreams(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	for _, streamConfig := range streamConfigs {
		_, err := js.Stream(ctx, streamConfig.Name)
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			if _, err := js.CreateStream(ctx, streamConfig); err != nil {
				logger.Error("Failed to create JetStream stream", slog.String("stream", streamConfig.Name), slog.Any("error", err))
				return fmt.Errorf("failed to create stream %s: %w", streamConfig.Name, err)
			}
			logger.Info("Created JetStream stream", slog.String("stream", streamConfig.Name))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check stream %s: %w", streamConfig.Name, err)
		}
	}
	return nil
}
