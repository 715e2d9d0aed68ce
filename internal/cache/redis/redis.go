package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webitel/inspection-exporter/internal/cache"
	"github.com/webitel/inspection-exporter/internal/domain/model/export"
)

const (
	keyPrefix = "inspection_export:"
	queueKey  = keyPrefix + "queue"
	jobTTL    = 24 * time.Hour
)

var _ cache.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ping Redis to check the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisCache{client: rdb}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) PushExportTask(ctx context.Context, task export.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal export task: %w", err)
	}
	return r.client.RPush(ctx, queueKey, data).Err()
}

func (r *RedisCache) PopExportTask(ctx context.Context, timeout time.Duration) (export.Task, error) {
	var task export.Task
	res, err := r.client.BLPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return task, cache.ErrQueueEmpty
	}
	if err != nil {
		return task, err
	}
	// BLPOP answers [key, value]
	if len(res) != 2 {
		return task, fmt.Errorf("unexpected BLPOP reply: %v", res)
	}
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return task, fmt.Errorf("unmarshal export task: %w", err)
	}
	return task, nil
}

func (r *RedisCache) SetJob(ctx context.Context, meta export.JobMetadata) error {
	files, err := json.Marshal(meta.Files)
	if err != nil {
		return fmt.Errorf("marshal job files: %w", err)
	}
	key := jobKey(meta.JobID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"kind", string(meta.Kind),
			"status", string(meta.Status),
			"current", meta.Progress.Current,
			"total", meta.Progress.Total,
			"skipped", meta.Skipped,
			"files", files,
			"error", meta.Error,
			"created_by", meta.CreatedBy,
			"finalizing", meta.Finalizing,
		)
		p.Expire(ctx, key, jobTTL)
		return nil
	})
	return err
}

func (r *RedisCache) GetJob(ctx context.Context, jobID string) (*export.JobMetadata, error) {
	vals, err := r.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, cache.ErrJobNotFound
	}
	meta := &export.JobMetadata{
		JobID:  jobID,
		Kind:   export.Kind(vals["kind"]),
		Status: export.Status(vals["status"]),
		Error:  vals["error"],
		Progress: export.Progress{
			Current: atoi(vals["current"]),
			Total:   atoi(vals["total"]),
		},
		Skipped:    atoi(vals["skipped"]),
		CreatedBy:  int64(atoi(vals["created_by"])),
		Finalizing: vals["finalizing"] == "1",
	}
	if f := vals["files"]; f != "" && f != "null" {
		if err := json.Unmarshal([]byte(f), &meta.Files); err != nil {
			return nil, fmt.Errorf("unmarshal job files: %w", err)
		}
	}
	return meta, nil
}

func (r *RedisCache) SetProgress(ctx context.Context, jobID string, p export.Progress) error {
	return r.client.HSet(ctx, jobKey(jobID), "current", p.Current, "total", p.Total).Err()
}

func (r *RedisCache) RequestCancel(ctx context.Context, jobID string) error {
	return r.client.Set(ctx, cancelKey(jobID), "1", jobTTL).Err()
}

func (r *RedisCache) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	count, err := r.client.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClearExportTask drops the cancel flag of a finished job. Its status hash
// stays until it expires so clients can still poll the outcome.
func (r *RedisCache) ClearExportTask(ctx context.Context, jobID string) error {
	return r.client.Del(ctx, cancelKey(jobID)).Err()
}

// Clear removes every key this service owns.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// helpers to standardize keys
func jobKey(jobID string) string    { return keyPrefix + "job:" + jobID }
func cancelKey(jobID string) string { return keyPrefix + "cancel:" + jobID }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
