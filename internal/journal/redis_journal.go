// Package journal keeps a bounded record of model-generated SQL statements
// that were executed against the database.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "autodoc:untrusted-sql"

// Entry describes one executed statement.
type Entry struct {
	Statement string    `json:"statement"`
	Question  string    `json:"question,omitempty"`
	RowCount  int       `json:"rowCount"`
	Error     string    `json:"error,omitempty"`
	ElapsedMS int64     `json:"elapsedMs"`
	At        time.Time `json:"at"`
}

// RedisJournal stores the newest entries first in a capped Redis list.
type RedisJournal struct {
	client *redis.Client
	key    string
	size   int64
}

func NewRedisJournal(redisURL string, size int) (*RedisJournal, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisJournalWithClient(client, size), nil
}

func NewRedisJournalWithClient(client *redis.Client, size int) *RedisJournal {
	if size <= 0 {
		size = 200
	}
	return &RedisJournal{client: client, key: defaultKey, size: int64(size)}
}

func (j *RedisJournal) Record(ctx context.Context, entry Entry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, j.key, payload)
	pipe.LTrim(ctx, j.key, 0, j.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Entries that no longer
// decode are skipped.
func (j *RedisJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || int64(limit) > j.size {
		limit = int(j.size)
	}
	raws, err := j.client.LRange(ctx, j.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (j *RedisJournal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

func (j *RedisJournal) Close() error {
	return j.client.Close()
}
