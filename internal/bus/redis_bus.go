package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBus provides Redis Streams-based update notifications
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
	// MaxLen approximately caps the stream length on publish; 0 disables.
	MaxLen int64
	// retryDelay is the pause after a failed read.
	retryDelay time.Duration
}

// StreamMessage represents a message in a Redis Stream
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// UpdateMessage announces a stored batch of records.
type UpdateMessage struct {
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind"`
	Count     int    `json:"count"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

// StreamHandler is a function that processes stream messages
type StreamHandler func(ctx context.Context, message StreamMessage) error

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[RedisBus] ", log.LstdFlags)
	}

	return &RedisBus{
		client:     client,
		logger:     logger,
		MaxLen:     10000,
		retryDelay: 5 * time.Second,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishUpdate appends msg to the records stream
func (rb *RedisBus) PublishUpdate(ctx context.Context, msg UpdateMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	args := &redis.XAddArgs{
		Stream: RecordsStream,
		Values: map[string]interface{}{
			"kind":      msg.Kind,
			"count":     msg.Count,
			"source":    msg.Source,
			"timestamp": msg.Timestamp,
		},
	}
	if rb.MaxLen > 0 {
		args.MaxLen = rb.MaxLen
		args.Approx = true
	}
	if err := rb.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}
	rb.logger.Printf("Published update: %d %s records from %s", msg.Count, msg.Kind, msg.Source)
	return nil
}

// CreateConsumerGroup creates a consumer group reading only new entries if it
// doesn't exist yet
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := rb.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s for stream %s: %w", group, stream, err)
	}
	return nil
}

// DeleteConsumerGroup drops a group, e.g. when a console exits.
func (rb *RedisBus) DeleteConsumerGroup(ctx context.Context, stream, group string) error {
	if err := rb.client.XGroupDestroy(ctx, stream, group).Err(); err != nil {
		return fmt.Errorf("failed to destroy consumer group %s: %w", group, err)
	}
	return nil
}

// ReadStream reads messages from a stream using consumer groups
func (rb *RedisBus) ReadStream(ctx context.Context, stream, group, consumer string, handler StreamHandler) error {
	if err := rb.CreateConsumerGroup(ctx, stream, group); err != nil {
		return err
	}
	rb.logger.Printf("Starting stream reader for %s (group: %s, consumer: %s)", stream, group, consumer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    1 * time.Second,
		})
		if err := result.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.Printf("Error reading from stream %s: %v", stream, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rb.retryDelay):
			}
			continue
		}

		for _, s := range result.Val() {
			for _, message := range s.Messages {
				streamMsg := StreamMessage{ID: message.ID, Fields: make(map[string]string, len(message.Values))}
				for key, value := range message.Values {
					streamMsg.Fields[key] = fmt.Sprint(value)
				}
				if err := handler(ctx, streamMsg); err != nil {
					rb.logger.Printf("Error processing message %s: %v", message.ID, err)
					continue
				}
				if err := rb.client.XAck(ctx, s.Stream, group, message.ID).Err(); err != nil {
					rb.logger.Printf("Error acknowledging message %s: %v", message.ID, err)
				}
			}
		}
	}
}

// ReadUpdates reads from the records stream
func (rb *RedisBus) ReadUpdates(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg UpdateMessage) error) error {
	return rb.ReadStream(ctx, RecordsStream, group, consumer, func(ctx context.Context, m StreamMessage) error {
		return handler(ctx, decodeUpdate(m))
	})
}

func decodeUpdate(m StreamMessage) UpdateMessage {
	msg := UpdateMessage{ID: m.ID, Kind: m.Fields["kind"], Source: m.Fields["source"]}
	if n, err := strconv.Atoi(m.Fields["count"]); err == nil {
		msg.Count = n
	}
	if ts, err := parseTimestamp(m.Fields["timestamp"]); err == nil {
		msg.Timestamp = ts
	}
	return msg
}

// parseTimestamp parses epoch seconds, epoch milliseconds or RFC3339.
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}
	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the records stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}
	n, err := rb.client.XLen(ctx, RecordsStream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get length of %s: %w", RecordsStream, err)
	}
	stats["records_stream_length"] = n
	if groups, err := rb.client.XInfoGroups(ctx, RecordsStream).Result(); err == nil {
		stats["records_consumer_groups"] = len(groups)
	}
	return stats, nil
}
