package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"pairVault/internal/events"
	"pairVault/internal/exchange"
	"pairVault/internal/ledger"
	"pairVault/internal/model"
	"pairVault/internal/protocol"
	"pairVault/internal/vault"
)

// ErrPairWired is returned by WirePair when a pair is already wired.
var ErrPairWired = errors.New("pair already wired")

// SymbolFunc resolves the ticker of an asset for share token naming.
type SymbolFunc func(ctx context.Context, asset common.Address) (string, error)

type Config struct {
	Address common.Address
	Admin   common.Address
	Policy  Policy
	// PoolFeeBps is the withdraw fee new pools start with.
	PoolFeeBps uint64
	Symbols    SymbolFunc
}

// Registry maps each asset to its single pool, holds the strategist allow-list and
// the protocol policy, and decides which pair the pools obey.
type Registry struct {
	address common.Address
	tokens  ledger.Tokens
	venue   exchange.Exchange
	gate    *protocol.Gate
	symbols SymbolFunc
	emitter events.Emitter
	logger  *zap.Logger

	guard       protocol.Guard
	admin       common.Address
	policy      Policy
	poolFeeBps  uint64
	pools       map[common.Address]*vault.Pool
	created     []common.Address
	strategists map[common.Address]struct{}
	nonce       uint64
}

func New(cfg Config, tokens ledger.Tokens, venue exchange.Exchange, emitter events.Emitter, logger *zap.Logger) (*Registry, error) {
	if cfg.Address == (common.Address{}) || cfg.Admin == (common.Address{}) {
		return nil, fmt.Errorf("registry and admin addresses are required")
	}
	if tokens == nil || venue == nil {
		return nil, fmt.Errorf("tokens and exchange are required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if !protocol.ValidBps(cfg.PoolFeeBps) {
		return nil, fmt.Errorf("pool fee %d bps: %w", cfg.PoolFeeBps, protocol.ErrInvalidAmount)
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		address:     cfg.Address,
		tokens:      tokens,
		venue:       venue,
		gate:        protocol.NewGate(),
		symbols:     cfg.Symbols,
		emitter:     emitter,
		logger:      logger,
		admin:       cfg.Admin,
		policy:      cfg.Policy,
		poolFeeBps:  cfg.PoolFeeBps,
		pools:       make(map[common.Address]*vault.Pool),
		strategists: make(map[common.Address]struct{}),
		nonce:       1,
	}, nil
}

func (r *Registry) Address() common.Address {
	return r.address
}

// Pair returns the wired pair, or the zero address.
func (r *Registry) Pair() common.Address {
	return r.gate.Pair()
}

func (r *Registry) Admin(ctx context.Context) common.Address {
	defer r.guard.View(ctx)()
	return r.admin
}

func (r *Registry) Policy(ctx context.Context) Policy {
	defer r.guard.View(ctx)()
	return r.policy
}

// Pool returns the pool of asset.
func (r *Registry) Pool(ctx context.Context, asset common.Address) (*vault.Pool, error) {
	defer r.guard.View(ctx)()
	pool, ok := r.pools[asset]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", asset.Hex(), protocol.ErrPoolNotFound)
	}
	return pool, nil
}

// Pools lists pools in creation order.
func (r *Registry) Pools(ctx context.Context) []*vault.Pool {
	defer r.guard.View(ctx)()
	out := make([]*vault.Pool, 0, len(r.created))
	for _, asset := range r.created {
		out = append(out, r.pools[asset])
	}
	return out
}

// IsApprovedStrategist reports whether addr may place trades.
func (r *Registry) IsApprovedStrategist(ctx context.Context, addr common.Address) bool {
	defer r.guard.View(ctx)()
	if !r.policy.PermissionedStrategists || addr == r.admin {
		return true
	}
	_, ok := r.strategists[addr]
	return ok
}

// Strategists lists explicitly approved strategists, sorted by address.
func (r *Registry) Strategists(ctx context.Context) []common.Address {
	defer r.guard.View(ctx)()
	out := make([]common.Address, 0, len(r.strategists))
	for addr := range r.strategists {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

func (r *Registry) onlyAdmin(caller common.Address) error {
	if caller != r.admin {
		return fmt.Errorf("caller %s is not admin: %w", caller.Hex(), protocol.ErrNotAuthorized)
	}
	return nil
}

// CreatePool maps asset to a new empty pool. Admin only.
func (r *Registry) CreatePool(ctx context.Context, caller, asset, feeRecipient common.Address) (*vault.Pool, error) {
	ctx, release, err := r.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return nil, err
	}
	pool, err := r.newPool(ctx, asset, feeRecipient)
	if err != nil {
		return nil, err
	}
	r.register(asset, pool)
	return pool, nil
}

// OpenPoolAndSignal creates the pool of newAsset and seeds it together with the
// existing pool of pairedAsset in one call. Anyone may call it; the caller must have
// approved the registry for both seeds and receives the shares of both deposits.
func (r *Registry) OpenPoolAndSignal(ctx context.Context, caller, newAsset common.Address, seed *big.Int, pairedAsset common.Address, pairedSeed *big.Int) (*vault.Pool, error) {
	ctx, release, err := r.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if newAsset == pairedAsset {
		return nil, fmt.Errorf("signal %s against itself: %w", newAsset.Hex(), protocol.ErrInvalidAmount)
	}
	if !protocol.Positive(seed) || !protocol.Positive(pairedSeed) {
		return nil, fmt.Errorf("signal seeds: %w", protocol.ErrInvalidAmount)
	}
	if seed.Cmp(vault.MinLiquidity) <= 0 {
		return nil, fmt.Errorf("seed %s must exceed %s: %w", seed, vault.MinLiquidity, protocol.ErrInvalidAmount)
	}
	if _, ok := r.pools[newAsset]; ok {
		return nil, fmt.Errorf("asset %s: %w", newAsset.Hex(), protocol.ErrPoolExists)
	}
	paired, ok := r.pools[pairedAsset]
	if !ok {
		return nil, fmt.Errorf("paired asset %s: %w", pairedAsset.Hex(), protocol.ErrPoolNotFound)
	}
	if preview, err := paired.PreviewDeposit(ctx, pairedSeed); err != nil {
		return nil, fmt.Errorf("paired seed: %w", err)
	} else if preview.Sign() == 0 {
		return nil, fmt.Errorf("paired seed %s mints no shares: %w", pairedSeed, protocol.ErrInvalidAmount)
	}

	pool, err := r.newPool(ctx, newAsset, common.Address{})
	if err != nil {
		return nil, err
	}

	if err := r.tokens.TransferFrom(ctx, newAsset, r.address, caller, r.address, seed); err != nil {
		return nil, fmt.Errorf("pull seed: %w", err)
	}
	if err := r.tokens.TransferFrom(ctx, pairedAsset, r.address, caller, r.address, pairedSeed); err != nil {
		r.refund(ctx, newAsset, caller, seed)
		return nil, fmt.Errorf("pull paired seed: %w", err)
	}

	if err := r.seed(ctx, pool, seed, caller); err != nil {
		r.refund(ctx, newAsset, caller, seed)
		r.refund(ctx, pairedAsset, caller, pairedSeed)
		return nil, fmt.Errorf("seed new pool: %w", err)
	}
	r.register(newAsset, pool)

	if err := r.seed(ctx, paired, pairedSeed, caller); err != nil {
		// the new pool is live and owned by the caller's shares; only the paired
		// seed is returned
		r.refund(ctx, pairedAsset, caller, pairedSeed)
		return pool, fmt.Errorf("seed paired pool: %w", err)
	}

	r.emitter.Emit(model.EventPoolSignaled, model.PoolSignaled{
		Signaler:    caller.Hex(),
		NewAsset:    newAsset.Hex(),
		NewPool:     pool.Address().Hex(),
		Seed:        seed.String(),
		PairedAsset: pairedAsset.Hex(),
		PairedPool:  paired.Address().Hex(),
		PairedSeed:  pairedSeed.String(),
	})
	r.logger.Info("pool signaled", zap.String("asset", newAsset.Hex()), zap.String("signaler", caller.Hex()))
	return pool, nil
}

func (r *Registry) seed(ctx context.Context, pool *vault.Pool, amount *big.Int, receiver common.Address) error {
	if err := r.tokens.Approve(ctx, pool.Underlying(), r.address, pool.Address(), amount); err != nil {
		return fmt.Errorf("approve pool: %w", err)
	}
	if _, err := pool.Deposit(ctx, r.address, amount, receiver); err != nil {
		if revokeErr := r.tokens.Approve(ctx, pool.Underlying(), r.address, pool.Address(), new(big.Int)); revokeErr != nil {
			r.logger.Warn("revoke pool allowance", zap.Error(revokeErr))
		}
		return err
	}
	return nil
}

func (r *Registry) refund(ctx context.Context, token, to common.Address, amount *big.Int) {
	if err := r.tokens.Transfer(ctx, token, r.address, to, amount); err != nil {
		r.logger.Error("refund seed", zap.String("token", token.Hex()), zap.String("to", to.Hex()), zap.Error(err))
	}
}

func (r *Registry) newPool(ctx context.Context, asset, feeRecipient common.Address) (*vault.Pool, error) {
	if asset == (common.Address{}) {
		return nil, fmt.Errorf("asset address is required: %w", protocol.ErrInvalidAmount)
	}
	if _, ok := r.pools[asset]; ok {
		return nil, fmt.Errorf("asset %s: %w", asset.Hex(), protocol.ErrPoolExists)
	}

	symbol := ""
	if r.symbols != nil {
		resolved, err := r.symbols(ctx, asset)
		if err != nil {
			r.logger.Warn("resolve symbol", zap.String("asset", asset.Hex()), zap.Error(err))
		} else {
			symbol = resolved
		}
	}

	address := crypto.CreateAddress(r.address, r.nonce)
	r.nonce++
	return vault.New(vault.Config{
		Address:      address,
		Underlying:   asset,
		Admin:        r.address,
		Symbol:       symbol,
		FeeBps:       r.poolFeeBps,
		FeeRecipient: feeRecipient,
	}, r.tokens, r.venue, r.gate, r.emitter, r.logger)
}

func (r *Registry) register(asset common.Address, pool *vault.Pool) {
	r.pools[asset] = pool
	r.created = append(r.created, asset)

	r.emitter.Emit(model.EventPoolCreated, model.PoolCreated{
		Asset:  asset.Hex(),
		Pool:   pool.Address().Hex(),
		Symbol: pool.Symbol(),
	})
	r.logger.Info("pool created", zap.String("asset", asset.Hex()), zap.String("pool", pool.Address().Hex()), zap.String("symbol", pool.Symbol()))
}

// WirePair authorizes pair on every pool and sets the reserve ratio and cancel delay
// it runs with. It refuses to replace a wired pair; use RewirePair for that.
func (r *Registry) WirePair(ctx context.Context, caller, pair common.Address, reserveRatioBps uint64, cancelDelay time.Duration) error {
	_, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	if current := r.gate.Pair(); current != (common.Address{}) {
		return fmt.Errorf("wired to %s: %w", current.Hex(), ErrPairWired)
	}
	if pair == (common.Address{}) {
		return fmt.Errorf("pair address is required: %w", protocol.ErrInvalidAmount)
	}
	next := r.policy
	next.ReserveRatioBps = reserveRatioBps
	next.CancelDelay = cancelDelay
	if err := next.Validate(); err != nil {
		return err
	}
	r.policy = next
	r.wire(pair)
	return nil
}

// RewirePair replaces the wired pair. The previous pair loses access to every pool
// immediately.
func (r *Registry) RewirePair(ctx context.Context, caller, pair common.Address) error {
	_, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	if pair == (common.Address{}) {
		return fmt.Errorf("pair address is required: %w", protocol.ErrInvalidAmount)
	}
	r.wire(pair)
	return nil
}

func (r *Registry) wire(pair common.Address) {
	previous := r.gate.Pair()
	r.gate.Set(pair)

	r.emitter.Emit(model.EventPairWired, model.PairWired{
		Previous:        previous.Hex(),
		Pair:            pair.Hex(),
		ReserveRatioBps: r.policy.ReserveRatioBps,
		CancelDelay:     r.policy.CancelDelay.String(),
	})
	r.logger.Info("pair wired", zap.String("pair", pair.Hex()), zap.String("previous", previous.Hex()))
}

func (r *Registry) ApproveStrategist(ctx context.Context, caller, strategist common.Address) error {
	_, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	r.strategists[strategist] = struct{}{}
	r.emitter.Emit(model.EventStrategistApproved, model.StrategistChanged{Strategist: strategist.Hex()})
	return nil
}

func (r *Registry) RevokeStrategist(ctx context.Context, caller, strategist common.Address) error {
	_, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	delete(r.strategists, strategist)
	r.emitter.Emit(model.EventStrategistRevoked, model.StrategistChanged{Strategist: strategist.Hex()})
	return nil
}
