package pair

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/model"
	"pairVault/internal/protocol"
)

// RebalancePair moves counter-assets that fills left in the wrong pool to the pool of
// that asset: up to assetAmount of asset out of the quote pool and up to quoteAmount
// of quote out of the asset pool. Requests are clamped to what is misplaced, so a
// zero or oversized request is never an error. The profit share of each transfer
// lands in the pair's booty balance. Anyone may call it. When a transfer fails after
// another has gone through, the event still reports what moved before the error
// is returned.
func (p *Pair) RebalancePair(ctx context.Context, caller common.Address, assetAmount, quoteAmount *big.Int, asset, quote common.Address) error {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	assetPool, quotePool, err := p.pools(ctx, asset, quote)
	if err != nil {
		return err
	}
	share := p.directory.Policy(ctx).ProfitShareBps
	moved := model.Rebalanced{Asset: asset.Hex(), Quote: quote.Hex()}

	assetMoved, assetCut, err := quotePool.Rebalance(ctx, p.address, assetPool.Address(), asset, share, protocol.OrZero(assetAmount))
	if err != nil {
		p.reportRebalance(caller, moved, assetMoved, assetCut, new(big.Int), new(big.Int))
		return fmt.Errorf("rebalance %s: %w", asset.Hex(), err)
	}
	quoteMoved, quoteCut, err := assetPool.Rebalance(ctx, p.address, quotePool.Address(), quote, share, protocol.OrZero(quoteAmount))
	p.reportRebalance(caller, moved, assetMoved, assetCut, quoteMoved, quoteCut)
	if err != nil {
		return fmt.Errorf("rebalance %s: %w", quote.Hex(), err)
	}
	return nil
}

// reportRebalance emits a Rebalanced event unless nothing moved.
func (p *Pair) reportRebalance(caller common.Address, ev model.Rebalanced, assetMoved, assetCut, quoteMoved, quoteCut *big.Int) {
	assetMoved, quoteMoved = protocol.OrZero(assetMoved), protocol.OrZero(quoteMoved)
	if assetMoved.Sign() == 0 && quoteMoved.Sign() == 0 {
		return
	}
	ev.AssetAmount = assetMoved.String()
	ev.QuoteAmount = quoteMoved.String()
	ev.AssetCut = protocol.OrZero(assetCut).String()
	ev.QuoteCut = protocol.OrZero(quoteCut).String()
	p.emitter.Emit(model.EventRebalanced, ev)
	p.logger.Info("pair rebalanced",
		zap.String("caller", caller.Hex()),
		zap.String("asset_moved", ev.AssetAmount),
		zap.String("quote_moved", ev.QuoteAmount),
	)
}

// StrategistBootyClaim pays caller their fill-weighted share of the pair's booty in
// asset and quote: fills[caller][token] * booty[token] / totalFills[token]. A claimed
// fill entry is zeroed; an entry whose share rounds to nothing is kept for later.
func (p *Pair) StrategistBootyClaim(ctx context.Context, caller, asset, quote common.Address) (*big.Int, *big.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if asset == quote {
		return nil, nil, fmt.Errorf("asset and quote are both %s: %w", asset.Hex(), protocol.ErrInvalidAmount)
	}
	assetPaid, err := p.claim(ctx, caller, asset)
	if err != nil {
		return nil, nil, err
	}
	quotePaid, err := p.claim(ctx, caller, quote)
	if err != nil {
		return nil, nil, err
	}
	if assetPaid.Sign() == 0 && quotePaid.Sign() == 0 {
		return assetPaid, quotePaid, nil
	}

	p.emitter.Emit(model.EventClaimed, model.Claimed{
		Strategist:  caller.Hex(),
		Asset:       asset.Hex(),
		Quote:       quote.Hex(),
		AssetAmount: assetPaid.String(),
		QuoteAmount: quotePaid.String(),
	})
	p.logger.Info("booty claimed",
		zap.String("strategist", caller.Hex()),
		zap.String("asset_amount", assetPaid.String()),
		zap.String("quote_amount", quotePaid.String()),
	)
	return assetPaid, quotePaid, nil
}

func (p *Pair) claim(ctx context.Context, strategist, token common.Address) (*big.Int, error) {
	fill := p.fills[strategist][token]
	total := p.totalFills[token]
	if fill == nil || fill.Sign() == 0 || total == nil || total.Sign() == 0 {
		return new(big.Int), nil
	}
	booty, err := p.tokens.BalanceOf(ctx, token, p.address)
	if err != nil {
		return nil, fmt.Errorf("booty balance: %w", err)
	}
	payout := protocol.MulDiv(fill, booty, total)
	if payout.Sign() == 0 {
		return payout, nil
	}

	claimed := new(big.Int).Set(fill)
	total.Sub(total, claimed)
	fill.SetInt64(0)
	if err := p.tokens.Transfer(ctx, token, p.address, strategist, payout); err != nil {
		fill.Set(claimed)
		total.Add(total, claimed)
		return nil, fmt.Errorf("pay booty: %w", err)
	}
	return payout, nil
}
