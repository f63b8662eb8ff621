// Package cache хранит в Redis ключи идемпотентности и отозванные сессии.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store хранит ключи идемпотентности и отозванные сессии в Redis. Нулевой *Store допустим и ничего не хранит.
type Store struct {
	rdb *redis.Client
}

// New подключается к Redis по адресу addr.
func New(addr string) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}))
}

// NewWithClient оборачивает готовый клиент Redis.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping проверяет доступность Redis.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close закрывает соединения с Redis.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.rdb.Close()
}

// LookupInvoice возвращает идентификатор счёта, созданного ранее с тем же ключом идемпотентности.
func (s *Store) LookupInvoice(ctx context.Context, userID int64, key string) (string, bool, error) {
	if s == nil || key == "" {
		return "", false, nil
	}

	id, err := s.rdb.Get(ctx, idemInvoiceKey(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get idempotency key: %w", err)
	}
	return id, true, nil
}

// RememberInvoice связывает ключ идемпотентности с созданным счётом.
func (s *Store) RememberInvoice(ctx context.Context, userID int64, key, invoiceID string) error {
	if s == nil || key == "" {
		return nil
	}

	if err := s.rdb.SetNX(ctx, idemInvoiceKey(userID, key), invoiceID, TTLIdempotency).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

// Revoke помечает сессию отозванной до истечения её срока действия.
func (s *Store) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if s == nil || jti == "" || ttl <= 0 {
		return nil
	}

	if err := s.rdb.Set(ctx, revokedSessionKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked сообщает, была ли сессия отозвана.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s == nil || jti == "" {
		return false, nil
	}

	n, err := s.rdb.Exists(ctx, revokedSessionKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return n > 0, nil
}
