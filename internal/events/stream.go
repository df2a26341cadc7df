package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// dlqMaxLen caps the dead-letter stream.
const dlqMaxLen = 10000

// Stream is the consumer-group side of the activity event stream.
type Stream interface {
	EnsureGroup(ctx context.Context) error
	// Read blocks up to block for new entries.
	Read(ctx context.Context, consumer string, count int, block time.Duration) ([]redis.XMessage, error)
	// Claim takes over entries other consumers left pending for minIdle.
	Claim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]redis.XMessage, error)
	Ack(ctx context.Context, ids ...string) error
	DeadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) error
	// Backlog is the number of entries pending or not yet delivered to the group.
	Backlog(ctx context.Context) (int64, error)
}

type redisStream struct {
	client *redis.Client
	// XAUTOCLAIM cursor, reset to 0-0 by Redis after a full scan.
	claimCursor string
}

var _ Stream = (*redisStream)(nil)

func newRedisStream(client *redis.Client) *redisStream {
	return &redisStream{client: client, claimCursor: "0-0"}
}

func (s *redisStream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if isConsumerGroupExistsError(err) {
		return nil
	}
	return err
}

func (s *redisStream) Read(ctx context.Context, consumer string, count int, block time.Duration) ([]redis.XMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(streams) == 0:
		return nil, nil
	}
	return streams[0].Messages, nil
}

func (s *redisStream) Claim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]redis.XMessage, error) {
	messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    s.claimCursor,
		Count:    int64(count),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if next != "" {
		s.claimCursor = next
	}
	return messages, nil
}

func (s *redisStream) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (s *redisStream) DeadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: dlqMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}

func (s *redisStream) Backlog(ctx context.Context) (int64, error) {
	groups, err := s.client.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			return g.Pending + g.Lag, nil
		}
	}
	return 0, nil
}

// NewConsumerID names this process within the consumer group. The ulid
// suffix keeps restarted pods on the same host apart.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "events"
	}
	return host + "-" + strings.ToLower(ulid.Make().String())
}

// isConsumerGroupExistsError reports Redis' BUSYGROUP reply.
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
