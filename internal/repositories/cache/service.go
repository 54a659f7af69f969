package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coordy/internal/models"

	"github.com/redis/go-redis/v9"
)

// WalletCache stores read-only wallet snapshots. Mutations never read
// from it.
type WalletCache interface {
	GetWallet(ctx context.Context, clientID string) (*models.ClientWallet, bool, error)
	SetWallet(ctx context.Context, wallet *models.ClientWallet) error
	InvalidateWallet(ctx context.Context, clientID string) error
}

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// GenerateKey builds keys like "wallet:client:abc".
func GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

func walletKey(clientID string) string {
	return GenerateKey("wallet", "client", clientID)
}

// Wallet caching
func (s *CacheService) GetWallet(ctx context.Context, clientID string) (*models.ClientWallet, bool, error) {
	var wallet models.ClientWallet
	found, err := s.Get(ctx, walletKey(clientID), &wallet)
	if err != nil || !found {
		return nil, false, err
	}
	return &wallet, true, nil
}

func (s *CacheService) SetWallet(ctx context.Context, wallet *models.ClientWallet) error {
	if wallet == nil {
		return errors.New("cannot cache nil wallet")
	}
	return s.Set(ctx, walletKey(wallet.ClientID), wallet)
}

func (s *CacheService) InvalidateWallet(ctx context.Context, clientID string) error {
	return s.Delete(ctx, walletKey(clientID))
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}

// NoopCache is used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) GetWallet(context.Context, string) (*models.ClientWallet, bool, error) {
	return nil, false, nil
}
func (NoopCache) SetWallet(context.Context, *models.ClientWallet) error { return nil }
func (NoopCache) InvalidateWallet(context.Context, string) error        { return nil }
