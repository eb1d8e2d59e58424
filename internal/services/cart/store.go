package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps carts between requests. Loading an unknown client yields an empty cart.
type Store interface {
	Load(ctx context.Context, clientID string) (Cart, error)
	Save(ctx context.Context, clientID string, c Cart) error
	Delete(ctx context.Context, clientID string) error
}

// RedisStore keeps each cart as a JSON value that expires after ttl of inactivity
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, clientID string) (Cart, error) {
	data, err := r.client.Get(ctx, cartKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	c.normalize()
	return c, nil
}

func (r *RedisStore) Save(ctx context.Context, clientID string, c Cart) error {
	if c.IsEmpty() {
		return r.Delete(ctx, clientID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(clientID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, cartKey(clientID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(clientID string) string {
	return fmt.Sprintf("cart:%s", clientID)
}

// MemoryStore keeps carts in process memory
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]Cart)}
}

func (m *MemoryStore) Load(_ context.Context, clientID string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.carts[clientID]
	return Cart{Lines: append([]Line(nil), c.Lines...)}, nil
}

func (m *MemoryStore) Save(_ context.Context, clientID string, c Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.IsEmpty() {
		delete(m.carts, clientID)
		return nil
	}
	m.carts[clientID] = Cart{Lines: append([]Line(nil), c.Lines...)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, clientID)
	return nil
}
