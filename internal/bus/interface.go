package bus

import (
	"context"
	"io"
	"log"
)

// RecordsStream carries one UpdateMessage per ingested batch.
const RecordsStream = "records"

// Bus defines the interface for update bus implementations
type Bus interface {
	// PublishUpdate announces that records of a kind were stored
	PublishUpdate(ctx context.Context, msg UpdateMessage) error

	// ReadUpdates blocks, delivering updates to handler until ctx is done
	ReadUpdates(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg UpdateMessage) error) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}
	logger.Printf("redis unavailable, updates disabled: %v", err)
	return NewNullBus(logger)
}
