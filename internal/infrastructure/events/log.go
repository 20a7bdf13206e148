// Package events holds publishers that do not need a broker.
package events

import (
	"context"
	"log/slog"

	"github.com/Xausdorf/clout-ledger/internal/domain/event"
)

// LogPublisher writes events to the structured log. Alerts are logged at
// error level so they reach whatever scrapes the log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	level := slog.LevelInfo
	if topic == event.TopicAlerts {
		level = slog.LevelError
	}
	p.logger.Log(ctx, level, "ledger event", "topic", topic, "key", key, "payload", payload)
	return nil
}

var _ event.Publisher = (*LogPublisher)(nil)
