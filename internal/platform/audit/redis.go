package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisEventPrefix    = "audit:event:"
	redisActorPrefix    = "audit:actor:"
	redisResourcePrefix = "audit:resource:"
)

// RedisStore keeps each event as JSON under its ID with sorted-set indexes
// per actor and per resource, scored by timestamp.
type RedisStore struct {
	client redis.Cmdable
}

// redisScore orders events by microsecond. Sorted-set scores are float64, so
// nanosecond timestamps would round to about 256ns and tie.
func redisScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	id := ev.ID.String()
	score := redisScore(ev.Timestamp)
	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		created = p.SetNX(ctx, redisEventPrefix+id, raw, 0)
		p.ZAddNX(ctx, redisActorPrefix+ev.ActorID, redis.Z{Score: score, Member: id})
		p.ZAddNX(ctx, redisResourcePrefix+ev.ResourceName, redis.Z{Score: score, Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	if !created.Val() {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	raw, err := s.client.Get(ctx, redisEventPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get audit event: %w", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode audit event: %w", err)
	}
	return ev, nil
}

func (s *RedisStore) ListByActor(ctx context.Context, actorID string, offset, limit int) ([]Event, error) {
	return s.list(ctx, redisActorPrefix+actorID, offset, limit)
}

func (s *RedisStore) ListByResource(ctx context.Context, resource string, offset, limit int) ([]Event, error) {
	return s.list(ctx, redisResourcePrefix+resource, offset, limit)
}

func (s *RedisStore) list(ctx context.Context, index string, offset, limit int) ([]Event, error) {
	start := int64(clampOffset(offset))
	ids, err := s.client.ZRevRange(ctx, index, start, start+int64(clampLimit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit index: %w", err)
	}
	out := []Event{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisEventPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit events: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode audit event %s: %w", ids[i], err)
		}
		out = append(out, ev)
	}
	return out, nil
}
