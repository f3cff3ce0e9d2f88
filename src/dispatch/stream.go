package dispatch

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/dao-governance/src/governance"
)

// DefaultStream receives custom calls when no stream is configured.
const DefaultStream = "governance.custom"

// StreamTarget appends custom calls to a redis stream for an external
// consumer group to pick up.
type StreamTarget struct {
	rdb    *redis.Client
	stream string
}

func NewStreamTarget(rdb *redis.Client, stream string) *StreamTarget {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamTarget{rdb: rdb, stream: stream}
}

func (t *StreamTarget) Call(ctx context.Context, call governance.CustomCall) error {
	return t.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: t.stream,
		Values: map[string]interface{}{
			"unit":     call.UnitID,
			"proposal": strconv.FormatUint(call.ProposalID, 10),
			"target":   call.Target,
			"data":     base64.StdEncoding.EncodeToString(call.Data),
			"key":      IdempotencyKey(call),
		},
	}).Err()
}
