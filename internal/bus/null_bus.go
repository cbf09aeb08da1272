package bus

import (
	"context"
	"log"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *log.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(log.Writer(), "[NullBus] ", log.LstdFlags)
	}
	return &NullBus{logger: logger}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishUpdate logs the update but doesn't publish it
func (nb *NullBus) PublishUpdate(ctx context.Context, msg UpdateMessage) error {
	nb.logger.Printf("Would publish %d %s records from %s (Redis disabled)", msg.Count, msg.Kind, msg.Source)
	return nil
}

// ReadUpdates blocks until ctx is cancelled; nothing is ever delivered.
func (nb *NullBus) ReadUpdates(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg UpdateMessage) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
