// Package events holds EventPublisher implementations that need no broker.
package events

import (
	"context"

	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/logger"
)

// LogPublisher logs events at debug level instead of sending them anywhere.
// It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	logger.FromContext(ctx).Debug("Event not published, no broker configured", "topic", topic, "key", key, "event", event)
	return nil
}

func (LogPublisher) Close() error { return nil }

var _ interfaces.EventPublisher = LogPublisher{}
