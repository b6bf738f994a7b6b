package pair

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/events"
	"pairVault/internal/exchange"
	"pairVault/internal/ledger"
	"pairVault/internal/protocol"
	"pairVault/internal/registry"
	"pairVault/internal/vault"
)

// Directory is what the pair needs from the registry.
type Directory interface {
	Pool(ctx context.Context, asset common.Address) (*vault.Pool, error)
	Policy(ctx context.Context) registry.Policy
	IsApprovedStrategist(ctx context.Context, addr common.Address) bool
}

type Config struct {
	Address common.Address
	// Now is the clock used for trade timestamps and the cancel delay.
	Now func() time.Time
}

// Pair orchestrates strategist trades across two pools. It keeps the trade ledger,
// sizes orders against each pool's reserve, reconciles fills on scrub and pays out
// strategist booty.
type Pair struct {
	address   common.Address
	directory Directory
	tokens    ledger.Tokens
	venue     exchange.Exchange
	emitter   events.Emitter
	logger    *zap.Logger
	now       func() time.Time

	guard       protocol.Guard
	lastID      uint64
	trades      map[uint64]*Trade
	outstanding map[common.Address]*tradeSet
	fills       map[common.Address]map[common.Address]*big.Int
	totalFills  map[common.Address]*big.Int
}

func New(cfg Config, directory Directory, tokens ledger.Tokens, venue exchange.Exchange, emitter events.Emitter, logger *zap.Logger) (*Pair, error) {
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("pair address is required")
	}
	if directory == nil || tokens == nil || venue == nil {
		return nil, fmt.Errorf("directory, tokens and exchange are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pair{
		address:     cfg.Address,
		directory:   directory,
		tokens:      tokens,
		venue:       venue,
		emitter:     emitter,
		logger:      logger.With(zap.String("pair", cfg.Address.Hex())),
		now:         cfg.Now,
		trades:      make(map[uint64]*Trade),
		outstanding: make(map[common.Address]*tradeSet),
		fills:       make(map[common.Address]map[common.Address]*big.Int),
		totalFills:  make(map[common.Address]*big.Int),
	}, nil
}

func (p *Pair) Address() common.Address {
	return p.address
}

// OutstandingTrades returns the ids of a strategist's unscrubbed trades, in no
// particular order.
func (p *Pair) OutstandingTrades(ctx context.Context, strategist common.Address) []uint64 {
	defer p.guard.View(ctx)()
	set, ok := p.outstanding[strategist]
	if !ok {
		return nil
	}
	return set.list()
}

// OutstandingTradesForPair returns a strategist's unscrubbed trades on asset/quote.
func (p *Pair) OutstandingTradesForPair(ctx context.Context, strategist, asset, quote common.Address) []Trade {
	defer p.guard.View(ctx)()
	set, ok := p.outstanding[strategist]
	if !ok {
		return nil
	}
	var out []Trade
	for _, id := range set.ids {
		trade := p.trades[id]
		if trade.Asset == asset && trade.Quote == quote {
			out = append(out, trade.clone())
		}
	}
	return out
}

// Trade returns a trade by id, scrubbed or not.
func (p *Pair) Trade(ctx context.Context, id uint64) (Trade, error) {
	defer p.guard.View(ctx)()
	trade, ok := p.trades[id]
	if !ok {
		return Trade{}, fmt.Errorf("trade %d: %w", id, protocol.ErrUnknownTrade)
	}
	return trade.clone(), nil
}

// Fills returns the unclaimed volume of strategist's fills that bought token.
func (p *Pair) Fills(ctx context.Context, strategist, token common.Address) *big.Int {
	defer p.guard.View(ctx)()
	if fill, ok := p.fills[strategist][token]; ok {
		return new(big.Int).Set(fill)
	}
	return new(big.Int)
}

// TotalFills returns the unclaimed filled volume of token across all strategists.
func (p *Pair) TotalFills(ctx context.Context, token common.Address) *big.Int {
	defer p.guard.View(ctx)()
	if total, ok := p.totalFills[token]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}

// BestQuotes returns the best resting ask (selling asset for quote) and bid (selling
// quote for asset) on the exchange. A side with no orders is exchange.NoOrder.
func (p *Pair) BestQuotes(ctx context.Context, asset, quote common.Address) (uint64, uint64, error) {
	ask, err := p.venue.BestOrder(ctx, asset, quote)
	if err != nil {
		return exchange.NoOrder, exchange.NoOrder, fmt.Errorf("best ask: %w", err)
	}
	bid, err := p.venue.BestOrder(ctx, quote, asset)
	if err != nil {
		return exchange.NoOrder, exchange.NoOrder, fmt.Errorf("best bid: %w", err)
	}
	return ask, bid, nil
}

func (p *Pair) creditFill(strategist, token common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	byToken := p.fills[strategist]
	if byToken == nil {
		byToken = make(map[common.Address]*big.Int)
		p.fills[strategist] = byToken
	}
	if byToken[token] == nil {
		byToken[token] = new(big.Int)
	}
	byToken[token].Add(byToken[token], amount)

	if p.totalFills[token] == nil {
		p.totalFills[token] = new(big.Int)
	}
	p.totalFills[token].Add(p.totalFills[token], amount)
}

func (p *Pair) pools(ctx context.Context, asset, quote common.Address) (*vault.Pool, *vault.Pool, error) {
	if asset == quote {
		return nil, nil, fmt.Errorf("asset and quote are both %s: %w", asset.Hex(), protocol.ErrInvalidAmount)
	}
	assetPool, err := p.directory.Pool(ctx, asset)
	if err != nil {
		return nil, nil, err
	}
	quotePool, err := p.directory.Pool(ctx, quote)
	if err != nil {
		return nil, nil, err
	}
	return assetPool, quotePool, nil
}
