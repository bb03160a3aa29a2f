package batchstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/redisclient"
)

// incrementScript processed 与 succeeded/failed 同时加一，并根据计数推进状态。
// 批次不存在（或已过期）时返回空数组，processed 已达 total 时返回 {'settled'}。
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {}
end
local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
local current = tonumber(redis.call('HGET', KEYS[1], 'processed') or '0')
if current >= total then
  return {'settled'}
end
local processed = redis.call('HINCRBY', KEYS[1], 'processed', 1)
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
local status = 'processing'
if processed >= total then
  status = 'completed'
end
redis.call('HSET', KEYS[1], 'status', status, 'updated_at', ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// RedisStore 批次保存在哈希中，活动日志保存在列表中，两者共用 TTL
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

var _ repo.BatchStore = (*RedisStore)(nil)

func batchKey(id string) string {
	return redisclient.Key("batch", id)
}

func activityKey(id string) string {
	return redisclient.Key("batch", id, "activity")
}

func (s *RedisStore) Create(ctx context.Context, b *entity.BatchSubmission, ttl time.Duration) error {
	fields, err := b.ToHash()
	if err != nil {
		return err
	}
	key := batchKey(b.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return entity.NewTransientError("create batch", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*entity.BatchSubmission, error) {
	h, err := s.client.HGetAll(ctx, batchKey(id)).Result()
	if err != nil {
		return nil, entity.NewTransientError("get batch", err)
	}
	if len(h) == 0 {
		return nil, entity.Errorf(entity.KindNotFound, "get batch", "batch %s not found", id)
	}
	return entity.BatchSubmissionFromHash(h)
}

func (s *RedisStore) IncrementOutcome(ctx context.Context, id string, outcome vo.ItemOutcome) (*entity.BatchSubmission, error) {
	if !outcome.IsValid() {
		return nil, entity.Errorf(entity.KindValidation, "report outcome", "unknown outcome %q", outcome)
	}
	field := entity.BatchFieldFailed
	if outcome == vo.ItemSucceeded {
		field = entity.BatchFieldSucceeded
	}
	updatedAt := s.now().UTC().Format(time.RFC3339Nano)

	res, err := incrementScript.Run(ctx, s.client, []string{batchKey(id)}, field, updatedAt).Slice()
	if err != nil {
		return nil, entity.NewTransientError("report outcome", err)
	}
	if len(res) == 0 {
		return nil, entity.Errorf(entity.KindNotFound, "report outcome", "batch %s not found", id)
	}
	if len(res) == 1 {
		return nil, entity.NewConcurrencyError("report outcome", entity.ErrBatchSettled)
	}
	h, err := pairsToMap(res)
	if err != nil {
		return nil, entity.NewConcurrencyError("report outcome", err)
	}
	return entity.BatchSubmissionFromHash(h)
}

func (s *RedisStore) AppendActivity(ctx context.Context, id string, activity vo.BatchActivity, limit int) error {
	if limit <= 0 {
		limit = 50
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	ttl, err := s.client.PTTL(ctx, batchKey(id)).Result()
	if err != nil {
		return entity.NewTransientError("append activity", err)
	}
	if ttl <= 0 {
		return entity.Errorf(entity.KindNotFound, "append activity", "batch %s not found", id)
	}
	key := activityKey(id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, body)
		pipe.LTrim(ctx, key, 0, int64(limit-1))
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return entity.NewTransientError("append activity", err)
	}
	return nil
}

func (s *RedisStore) RecentActivity(ctx context.Context, id string, limit int) ([]vo.BatchActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.client.LRange(ctx, activityKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, entity.NewTransientError("recent activity", err)
	}
	out := make([]vo.BatchActivity, 0, len(raw))
	for _, item := range raw {
		var a vo.BatchActivity
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func pairsToMap(pairs []interface{}) (map[string]string, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("odd number of hash elements: %d", len(pairs))
	}
	out := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok1 := pairs[i].(string)
		v, ok2 := pairs[i+1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unexpected hash element types %T/%T", pairs[i], pairs[i+1])
		}
		out[k] = v
	}
	return out, nil
}
