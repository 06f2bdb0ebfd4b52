package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rescan/internal/models"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyAddress is for address ledger entries
	CacheKeyAddress CacheKeyType = "address"
	// CacheKeyAddressGeneration counts invalidations of an address entry
	CacheKeyAddressGeneration CacheKeyType = "address_gen"
)

// addressGenerationTTL bounds how long an unused generation counter lives.
// It must exceed the longest lookup between reading the generation and
// writing the entry back.
const addressGenerationTTL = 24 * time.Hour

// setIfGenerationScript writes KEYS[2] only while the counter in KEYS[1]
// still holds the generation the caller read before loading the row.
var setIfGenerationScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if current == false then
		current = '0'
	end
	if current ~= ARGV[1] then
		return 0
	end
	local ttl = tonumber(ARGV[3])
	if ttl > 0 then
		redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
	else
		redis.call('SET', KEYS[2], ARGV[2])
	end
	return 1
`)

// invalidateScript bumps the generation and drops the entry atomically
var invalidateScript = redis.NewScript(`
	redis.call('INCR', KEYS[1])
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	redis.call('DEL', KEYS[2])
	return 1
`)

// CacheService provides typed caching on top of Redis. A nil *CacheService
// is valid and behaves as an always-missing cache.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := append([]string{string(keyType)}, params...)
	return strings.Join(parts, ":")
}

// GenerateAddressKey generates a cache key for a normalized address
// Format: address:<key>
func (c *CacheService) GenerateAddressKey(addressKey string) string {
	return c.GenerateCacheKey(CacheKeyAddress, addressKey)
}

// Get retrieves a value from cache and deserializes it
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := c.redis.Get(ctx, key)
	if err != nil {
		// Key not found is not an error, just a cache miss
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// GetAddress returns a cached address entry
func (c *CacheService) GetAddress(ctx context.Context, addressKey string) (*models.Address, bool, error) {
	var addr models.Address
	found, err := c.Get(ctx, c.GenerateAddressKey(addressKey), &addr)
	if err != nil || !found {
		return nil, false, err
	}
	return &addr, true, nil
}

// AddressGeneration returns how many times the address entry has been
// invalidated. Read it before loading the row and hand it to
// SetAddressIfCurrent.
func (c *CacheService) AddressGeneration(ctx context.Context, addressKey string) (int64, error) {
	if c == nil {
		return 0, nil
	}

	data, err := c.redis.Get(ctx, c.GenerateCacheKey(CacheKeyAddressGeneration, addressKey))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read address generation: %w", err)
	}

	gen, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address generation %q: %w", data, err)
	}
	return gen, nil
}

// SetAddressIfCurrent caches addr unless the entry was invalidated after
// generation was read. It reports whether the entry was written.
func (c *CacheService) SetAddressIfCurrent(ctx context.Context, addr *models.Address, generation int64) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := json.Marshal(addr)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	keys := []string{
		c.GenerateCacheKey(CacheKeyAddressGeneration, addr.Key),
		c.GenerateAddressKey(addr.Key),
	}
	written, err := setIfGenerationScript.Run(ctx, c.redis.Client(), keys,
		strconv.FormatInt(generation, 10), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set address: %w", err)
	}
	return written == 1, nil
}

// InvalidateAddress drops the cached entry for an address and advances its
// generation so that in-flight lookups cannot write back an older row
func (c *CacheService) InvalidateAddress(ctx context.Context, addressKey string) error {
	if c == nil {
		return nil
	}

	keys := []string{
		c.GenerateCacheKey(CacheKeyAddressGeneration, addressKey),
		c.GenerateAddressKey(addressKey),
	}
	if err := invalidateScript.Run(ctx, c.redis.Client(), keys, addressGenerationTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate address: %w", err)
	}
	return nil
}
