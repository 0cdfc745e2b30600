package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/patch-stream/internal/logging"
)

// RedisTracker зеркалирует множество загруженных патчей в Redis-set,
// чтобы соседние сервисы видели, что сейчас резидентно, без обращения к
// самому стримеру. Ошибки Redis не влияют на стриминг: логируются и глотаются.
//
// Реализует patch.ResidentTracker.
type RedisTracker struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

// RedisTrackerConfig — настройки подключения
type RedisTrackerConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс ключа множества
}

// NewRedisTracker подключается к Redis и проверяет соединение
func NewRedisTracker(cfg RedisTrackerConfig) (*RedisTracker, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "patchstream:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTracker{
		client: client,
		ctx:    ctx,
		key:    cfg.KeyPrefix + "resident",
	}, nil
}

// MarkLoaded добавляет патч в зеркало резидентного множества
func (t *RedisTracker) MarkLoaded(id string) {
	if err := t.client.SAdd(t.ctx, t.key, id).Err(); err != nil {
		logging.Warn("Redis: не удалось отметить загрузку %s: %v", id, err)
	}
}

// MarkUnloaded убирает патч из зеркала
func (t *RedisTracker) MarkUnloaded(id string) {
	if err := t.client.SRem(t.ctx, t.key, id).Err(); err != nil {
		logging.Warn("Redis: не удалось отметить выгрузку %s: %v", id, err)
	}
}

// Resident возвращает зеркалированное множество (для внешней диагностики)
func (t *RedisTracker) Resident() ([]string, error) {
	return t.client.SMembers(t.ctx, t.key).Result()
}

// Close закрывает подключение к Redis
func (t *RedisTracker) Close() error {
	return t.client.Close()
}
