package token

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/model"
	"pairVault/internal/retry"
)

// Cache caches token metadata by address.
type Cache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewCache() *Cache {
	return &Cache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *Cache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *Cache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Resolver fetches token metadata through a cache, retrying failed RPC calls.
type Resolver struct {
	caller     Caller
	cache      *Cache
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

func NewResolver(caller Caller, cache *Cache, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		caller:     caller,
		cache:      cache,
		logger:     logger,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Meta returns cached metadata for token, fetching it on a miss. Partial results are
// cached too so a token with a broken name is not re-queried on every lookup.
func (r *Resolver) Meta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.cache.Get(token); ok {
		return meta, nil
	}
	var meta model.TokenMeta
	err := retry.Do(ctx, r.maxRetries, r.baseDelay, func(ctx context.Context) error {
		var err error
		meta, err = FetchMeta(ctx, r.caller, token, r.logger)
		return err
	})
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token %s metadata: %w", token.Hex(), err)
	}
	if meta.Partial {
		r.logger.Warn("token metadata incomplete", zap.String("token", token.Hex()))
	}
	r.cache.Set(token, meta)
	return meta, nil
}

// Symbol returns the token symbol for pool naming. It fails when the token reports
// no symbol.
func (r *Resolver) Symbol(ctx context.Context, token common.Address) (string, error) {
	meta, err := r.Meta(ctx, token)
	if err != nil {
		return "", err
	}
	symbol := strings.TrimSpace(meta.Symbol)
	if symbol == "" {
		return "", fmt.Errorf("token %s has no symbol", token.Hex())
	}
	return symbol, nil
}
