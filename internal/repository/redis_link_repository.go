package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/redis/go-redis/v9"
)

// Ключи redis-бэкенда:
//   link:<code>   — JSON записи (без счётчика кликов)
//   clicks:<code> — счётчик кликов (INCRBY)
//   links:expiry  — ZSET индекс истечения, score = expires_at unix
//   links:seq     — глобальный счётчик для последовательного режима
const (
	expiryIndexKey = "links:expiry"
	sequenceKey    = "links:seq"

	// Запас к пассивному TTL ключей: нативное вытеснение redis — лишь
	// оптимизация, детерминированно записи удаляет свипер. Запас
	// гарантирует, что ключи не исчезнут раньше логического истечения.
	passiveExpiryGrace = 24 * time.Hour
)

// createScript атомарно создаёт запись вместе со счётчиком и членством
// в индексе истечения: либо появляются все три, либо ни одного. SET NX
// остаётся единственной проверкой уникальности; счётчик обнуляется на
// случай остатков от пассивно вытесненной записи с тем же кодом.
// KEYS: link:<code>, clicks:<code>, links:expiry
// ARGV: json записи, TTL мс, score (expires_at unix), код
var createScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[2], 0, 'PX', ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[4])
return 1
`)

// incrementScript атомарно проверяет существование записи и увеличивает
// счётчик: исчезнувшая между проверкой и инкрементом запись не может
// оставить бесхозный ключ счётчика.
// KEYS: link:<code>, clicks:<code>
// ARGV: шаг инкремента
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
return redis.call('INCRBY', KEYS[2], ARGV[1])
`)

type redisLinkRepository struct {
	redis *RedisDB
}

func NewRedisLinkRepository(redis *RedisDB) LinkRepository {
	return &redisLinkRepository{redis: redis}
}

func (r *redisLinkRepository) Create(ctx context.Context, link *models.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	ttl := time.Until(link.ExpiresAt) + passiveExpiryGrace

	created, err := createScript.Run(ctx, r.redis.Client,
		[]string{linkKey(link.ShortCode), clicksKey(link.ShortCode), expiryIndexKey},
		data,
		ttl.Milliseconds(),
		link.ExpiresAt.Unix(),
		link.ShortCode,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	if created == 0 {
		return ErrCodeExists
	}

	return nil
}

func (r *redisLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	data, err := r.redis.Client.Get(ctx, linkKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}

	clicks, err := r.redis.Client.Get(ctx, clicksKey(code)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get clicks: %w", err)
	}
	link.Clicks = clicks

	return &link, nil
}

func (r *redisLinkRepository) IncrementClicks(ctx context.Context, code string, by int64) (int64, error) {
	clicks, err := incrementScript.Run(ctx, r.redis.Client,
		[]string{linkKey(code), clicksKey(code)},
		by,
	).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrLinkNotFound
		}
		return 0, fmt.Errorf("failed to increment clicks: %w", err)
	}

	return clicks, nil
}

func (r *redisLinkRepository) ScanExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	codes, err := r.redis.Client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(before.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired links: %w", err)
	}

	return codes, nil
}

func (r *redisLinkRepository) Delete(ctx context.Context, code string) (bool, error) {
	pipe := r.redis.Client.Pipeline()
	delCmd := pipe.Del(ctx, linkKey(code), clicksKey(code))
	pipe.ZRem(ctx, expiryIndexKey, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}

	return delCmd.Val() > 0, nil
}

func (r *redisLinkRepository) NextSequence(ctx context.Context) (int64, error) {
	next, err := r.redis.Client.Incr(ctx, sequenceKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	return next, nil
}

func linkKey(code string) string {
	return "link:" + code
}

func clicksKey(code string) string {
	return "clicks:" + code
}
