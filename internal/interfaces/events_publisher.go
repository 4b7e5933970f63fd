package interfaces

import "context"

type EventPublisher interface {
	// Publish sends event to topic. key groups events that must stay ordered.
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}
