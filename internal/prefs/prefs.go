package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-catalog-service/internal/domain"
)

const keyPrefix = "storefront:locale:"

// LocaleStore remembers the locale chosen by a client.
type LocaleStore interface {
	GetLocale(ctx context.Context, clientID string) (domain.Locale, bool, error)
	SetLocale(ctx context.Context, clientID string, locale domain.Locale) error
}

// RedisCmdable is the subset of the redis client used here.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Config holds the redis connection settings.
type Config struct {
	URL          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// NewClient parses the URL, applies the timeouts and pings the server.
func (c Config) NewClient(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("prefs: parse redis url: %w", err)
	}
	opts.ReadTimeout = c.ReadTimeout
	opts.WriteTimeout = c.WriteTimeout
	opts.DialTimeout = c.DialTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("prefs: ping redis: %w", err)
	}
	return client, nil
}

// RedisLocaleStore keeps preferences in redis under storefront:locale:<client id>.
type RedisLocaleStore struct {
	client RedisCmdable
	ttl    time.Duration
}

// NewRedisLocaleStore creates a store whose entries expire after ttl (0 keeps them).
func NewRedisLocaleStore(client RedisCmdable, ttl time.Duration) *RedisLocaleStore {
	return &RedisLocaleStore{client: client, ttl: ttl}
}

func (s *RedisLocaleStore) GetLocale(ctx context.Context, clientID string) (domain.Locale, bool, error) {
	v, err := s.client.Get(ctx, keyPrefix+clientID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prefs: get locale: %w", err)
	}
	return domain.ParseLocale(v), true, nil
}

func (s *RedisLocaleStore) SetLocale(ctx context.Context, clientID string, locale domain.Locale) error {
	if err := s.client.Set(ctx, keyPrefix+clientID, locale.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("prefs: set locale: %w", err)
	}
	return nil
}

// MemoryLocaleStore is the in-process store used when redis is not configured.
type MemoryLocaleStore struct {
	mu      sync.RWMutex
	locales map[string]domain.Locale
}

func NewMemoryLocaleStore() *MemoryLocaleStore {
	return &MemoryLocaleStore{locales: make(map[string]domain.Locale)}
}

func (s *MemoryLocaleStore) GetLocale(_ context.Context, clientID string) (domain.Locale, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locales[clientID]
	return l, ok, nil
}

func (s *MemoryLocaleStore) SetLocale(_ context.Context, clientID string, locale domain.Locale) error {
	s.mu.Lock()
	s.locales[clientID] = locale
	s.mu.Unlock()
	return nil
}
