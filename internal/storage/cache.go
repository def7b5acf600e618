package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix        = "sentiment:"
	cacheGenerationKey = cachePrefix + "gen"
	cacheTTL           = time.Minute
)

// cacheKey 生成带代数的缓存 key。SaveBatch 递增代数后旧 key 不再被读取，随 TTL 过期
func (s *Store) cacheKey(ctx context.Context, format string, args ...any) (string, bool) {
	if s.Redis == nil {
		return "", false
	}
	gen, err := s.Redis.Get(ctx, cacheGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	return fmt.Sprintf("%sv%d:%s", cachePrefix, gen, fmt.Sprintf(format, args...)), true
}

func (s *Store) cacheGet(ctx context.Context, key string, dst any) bool {
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, dst) == nil
}

func (s *Store) cacheSet(ctx context.Context, key string, v any) {
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, bs, cacheTTL).Err(); err != nil {
		s.log.WithError(err).Debug("redis set failed")
	}
}

func (s *Store) bumpCacheGeneration(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, cacheGenerationKey).Err(); err != nil {
		s.log.WithError(err).Warn("redis incr cache generation failed")
	}
}
