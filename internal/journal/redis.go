package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/flowstate/pkg/api"
)

// Redis stores journal records in Redis. It uses a simple key structure:
//
//	<prefix>rec:<storeID>  => LIST of JSON-encoded records, append order
//	<prefix>live           => pub/sub channel carrying every record
//
// The pub/sub channel lets external tooling (dashboards, time-travel
// debuggers) tail records live; subscribers that are not connected when a
// record is published miss it, which matches the journal's at-most-once
// tailing semantics. The per-store list is the durable copy.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ api.RecordJournal = (*Redis)(nil)

// NewRedis creates a Redis journal. prefix is optional but recommended
// (e.g. "flowstate:").
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "flowstate:"
	}
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

func (r *Redis) keyRecords(storeID string) string {
	return r.prefix + "rec:" + storeID
}

func (r *Redis) keyLive() string {
	return r.prefix + "live"
}

func (r *Redis) Append(ctx context.Context, rec api.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := r.client.RPush(ctx, r.keyRecords(rec.StoreID), payload).Err(); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	// Live publish is best-effort; the list already holds the record.
	_ = r.client.Publish(ctx, r.keyLive(), payload).Err()
	return nil
}

// List returns the records appended for storeID, in append order.
func (r *Redis) List(ctx context.Context, storeID string) ([]api.Record, error) {
	raw, err := r.client.LRange(ctx, r.keyRecords(storeID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]api.Record, 0, len(raw))
	for _, item := range raw {
		var rec api.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
