package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRecentLimit = 100
	defaultRecordTTL   = 24 * time.Hour
)

// RedisSink keeps a capped list of recent results plus one key per record.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	ttl    time.Duration
}

// NewRedisSink connects using a redis:// URL and pings the server.
func NewRedisSink(ctx context.Context, url string) (*RedisSink, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisSinkFromClient(rdb), nil
}

func NewRedisSinkFromClient(rdb *redis.Client) *RedisSink {
	return &RedisSink{rdb: rdb, prefix: "arena", limit: defaultRecentLimit, ttl: defaultRecordTTL}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) keyRecent(kind string) string { return s.prefix + ":recent:" + kind }
func (s *RedisSink) keyRecord(kind, id string) string {
	return s.prefix + ":" + kind + ":" + strings.TrimSpace(id)
}

func (s *RedisSink) Write(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyRecord(rec.Kind, rec.ID()), raw, s.ttl)
	pipe.LPush(ctx, s.keyRecent(rec.Kind), raw)
	pipe.LTrim(ctx, s.keyRecent(rec.Kind), 0, s.limit-1)
	pipe.Expire(ctx, s.keyRecent(rec.Kind), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write %s: %w", rec.ID(), err)
	}
	return nil
}

// Recent returns up to n of the newest records of kind.
func (s *RedisSink) Recent(ctx context.Context, kind string, n int64) ([]Record, error) {
	if n <= 0 {
		n = s.limit
	}
	raws, err := s.rdb.LRange(ctx, s.keyRecent(kind), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisSink) Close() error { return s.rdb.Close() }
