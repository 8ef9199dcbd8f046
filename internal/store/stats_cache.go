package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"voice_eval/internal/models"
)

const (
	statsKeyPrefix   = "voice_eval:stats:"
	metricsKeyPrefix = "voice_eval:metrics:evaluations:"
	metricsRetention = 7 * 24 * time.Hour
)

// StatsCache 基于Redis的练习统计缓存和评测计数
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewStatsCache 创建统计缓存
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsCache{client: client, ttl: ttl, now: time.Now}
}

// NewRedisClient 创建Redis客户端并检查连通性
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}
	return client, nil
}

// Get 读取缓存的统计，未命中返回 models.ErrNotFound
func (c *StatsCache) Get(ctx context.Context, userID string) (*models.PracticeStats, error) {
	data, err := c.client.Get(ctx, statsKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var stats models.PracticeStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("解析缓存统计失败: %w", err)
	}
	return &stats, nil
}

// Set 写入统计缓存
func (c *StatsCache) Set(ctx context.Context, userID string, stats *models.PracticeStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKeyPrefix+userID, data, c.ttl).Err()
}

// Invalidate 删除用户的统计缓存
func (c *StatsCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, statsKeyPrefix+userID).Err()
}

// IncrementEvaluation 记录一次评测事件，按天汇总
func (c *StatsCache) IncrementEvaluation(ctx context.Context, event string) error {
	key := metricsKey(c.now())
	pipe := c.client.Pipeline()
	pipe.HIncrBy(ctx, key, event, 1)
	pipe.Expire(ctx, key, metricsRetention)
	_, err := pipe.Exec(ctx)
	return err
}

// EvaluationCounts 查询某天的评测事件计数
func (c *StatsCache) EvaluationCounts(ctx context.Context, day time.Time) (map[string]int64, error) {
	raw, err := c.client.HGetAll(ctx, metricsKey(day)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[k] = n
	}
	return counts, nil
}

func metricsKey(t time.Time) string {
	return metricsKeyPrefix + t.Format("2006-01-02")
}
