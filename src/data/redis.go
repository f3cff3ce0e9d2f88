package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/dao-governance/src/governance"
)

const (
	noncePrefix = "gov:nonce:"
	nonceTTL    = 5 * time.Minute

	DefaultEventStream = "governance.events"
)

// OpenRedis parses url and returns a client.
func OpenRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NonceStore keeps auth challenges in redis.
type NonceStore struct {
	rdb *redis.Client
}

func NewNonceStore(rdb *redis.Client) *NonceStore {
	return &NonceStore{rdb: rdb}
}

// SetNonce stores the challenge issued to addr.
func (s *NonceStore) SetNonce(ctx context.Context, addr, nonce string) error {
	return s.rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

// TakeNonce returns and forgets the pending challenge of addr.
func (s *NonceStore) TakeNonce(ctx context.Context, addr string) (string, error) {
	return s.rdb.GetDel(ctx, noncePrefix+addr).Result()
}

// StreamSink appends governance events to a redis stream.
type StreamSink struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewStreamSink publishes to stream, trimming it to roughly maxLen entries
// when maxLen is positive.
func NewStreamSink(rdb *redis.Client, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = DefaultEventStream
	}
	return &StreamSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Publish(ctx context.Context, evt governance.Event) error {
	_, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: EventValues(evt),
	}).Result()
	return err
}

// EventValues flattens evt into stream fields.
func EventValues(evt governance.Event) map[string]interface{} {
	values := map[string]interface{}{
		"type":  string(evt.Type),
		"unit":  evt.UnitID,
		"actor": evt.Actor,
		"at":    evt.At.UTC().Format(time.RFC3339Nano),
	}
	if evt.ProposalID != nil {
		values["proposal"] = strconv.FormatUint(*evt.ProposalID, 10)
	}
	if len(evt.Attrs) > 0 {
		attrs, _ := json.Marshal(evt.Attrs)
		values["attrs"] = string(attrs)
	}
	return values
}
