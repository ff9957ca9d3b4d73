package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/tournament-live/models"
)

const defaultSnapshotTTL = 6 * time.Hour

// SnapshotStore - долговременное хранилище за кэшем.
type SnapshotStore interface {
	Load(ctx context.Context, matchID int) (*models.MatchState, error)
	Save(ctx context.Context, state *models.MatchState) error
}

type eventLog interface {
	EventsAfter(ctx context.Context, matchID int, afterSequence int) ([]models.MatchEvent, error)
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisSnapshotCache - write-through кэш снапшотов. Источником истины остаётся
// хранилище: ошибки Redis логируются и не ломают сохранение.
type RedisSnapshotCache struct {
	client *redis.Client
	inner  SnapshotStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisSnapshotCache(client *redis.Client, inner SnapshotStore, ttl time.Duration, logger *slog.Logger) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSnapshotCache{client: client, inner: inner, ttl: ttl, logger: logger}
}

func snapshotKey(matchID int) string {
	return fmt.Sprintf("live:match:%d:snapshot", matchID)
}

func (c *RedisSnapshotCache) Load(ctx context.Context, matchID int) (*models.MatchState, error) {
	data, err := c.client.Get(ctx, snapshotKey(matchID)).Bytes()
	switch {
	case err == nil:
		state := &models.MatchState{}
		if err := json.Unmarshal(data, state); err == nil {
			return state, nil
		}
		c.logger.Warn("Dropping undecodable cached snapshot", slog.Int("match_id", matchID))
		c.client.Del(ctx, snapshotKey(matchID))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Snapshot cache read failed, falling back to store", slog.Int("match_id", matchID), slog.Any("error", err))
	}

	state, err := c.inner.Load(ctx, matchID)
	if err != nil || state == nil {
		return state, err
	}
	c.set(ctx, state)
	return state, nil
}

func (c *RedisSnapshotCache) Save(ctx context.Context, state *models.MatchState) error {
	if err := c.inner.Save(ctx, state); err != nil {
		return err
	}
	c.set(ctx, state)
	return nil
}

// EventsAfter проксирует запрос в журнал событий, если хранилище его ведёт.
func (c *RedisSnapshotCache) EventsAfter(ctx context.Context, matchID int, afterSequence int) ([]models.MatchEvent, error) {
	if log, ok := c.inner.(eventLog); ok {
		return log.EventsAfter(ctx, matchID, afterSequence)
	}
	return nil, nil
}

func (c *RedisSnapshotCache) set(ctx context.Context, state *models.MatchState) {
	data, err := json.Marshal(state)
	if err != nil {
		c.logger.Error("Failed to encode snapshot for cache", slog.Int("match_id", state.MatchID), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, snapshotKey(state.MatchID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Snapshot cache write failed", slog.Int("match_id", state.MatchID), slog.Any("error", err))
	}
}
