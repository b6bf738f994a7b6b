package pair

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/exchange"
	"pairVault/internal/model"
	"pairVault/internal/protocol"
)

// PlaceMarketMakingTrades opens an ask (askPay of asset for askBuy of quote) and a bid
// (bidPay of quote for bidBuy of asset) from the pair's pools and records them as one
// trade. Either leg may be zero. Both legs are sized before anything is placed, and
// the ask is cancelled if the bid cannot be placed. It returns the trade id, or zero
// when both legs are empty. If the bid fails and the ask cannot be cancelled either,
// the ask is recorded as a trade of its own so it can still be scrubbed, and its id
// comes back together with the error.
func (p *Pair) PlaceMarketMakingTrades(ctx context.Context, caller, asset, quote common.Address, askPay, askBuy, bidPay, bidBuy *big.Int) (uint64, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if !p.directory.IsApprovedStrategist(ctx, caller) {
		return 0, fmt.Errorf("strategist %s: %w", caller.Hex(), protocol.ErrNotAuthorized)
	}
	askPay, askBuy = protocol.OrZero(askPay), protocol.OrZero(askBuy)
	bidPay, bidBuy = protocol.OrZero(bidPay), protocol.OrZero(bidBuy)
	if err := checkLeg("ask", askPay, askBuy); err != nil {
		return 0, err
	}
	if err := checkLeg("bid", bidPay, bidBuy); err != nil {
		return 0, err
	}
	hasAsk, hasBid := askPay.Sign() > 0, bidPay.Sign() > 0
	if !hasAsk && !hasBid {
		return 0, nil
	}
	if hasAsk && hasBid && crosses(askPay, askBuy, bidPay, bidBuy) {
		return 0, fmt.Errorf("ask %s/%s crosses bid %s/%s: %w", askBuy, askPay, bidPay, bidBuy, protocol.ErrInvalidAmount)
	}

	assetPool, quotePool, err := p.pools(ctx, asset, quote)
	if err != nil {
		return 0, err
	}
	policy := p.directory.Policy(ctx)
	if hasAsk {
		limit, err := p.maxOrderSize(ctx, assetPool, policy)
		if err != nil {
			return 0, err
		}
		if askPay.Cmp(limit) > 0 {
			return 0, fmt.Errorf("ask %s above max %s: %w", askPay, limit, protocol.ErrOrderTooLarge)
		}
	}
	if hasBid {
		limit, err := p.maxOrderSize(ctx, quotePool, policy)
		if err != nil {
			return 0, err
		}
		if bidPay.Cmp(limit) > 0 {
			return 0, fmt.Errorf("bid %s above max %s: %w", bidPay, limit, protocol.ErrOrderTooLarge)
		}
	}

	askID, bidID := exchange.NoOrder, exchange.NoOrder
	if hasAsk {
		askID, err = assetPool.PlaceOffer(ctx, p.address, askPay, asset, askBuy, quote)
		if err != nil {
			return 0, fmt.Errorf("place ask: %w", err)
		}
	}
	if hasBid {
		bidID, err = quotePool.PlaceOffer(ctx, p.address, bidPay, quote, bidBuy, asset)
		if err != nil {
			if !hasAsk {
				return 0, fmt.Errorf("place bid: %w", err)
			}
			cancelErr := assetPool.Cancel(ctx, p.address, askID, askPay)
			if cancelErr == nil {
				return 0, fmt.Errorf("place bid: %w", err)
			}
			id := p.record(caller, asset, quote, askID, exchange.NoOrder, askPay, askBuy, new(big.Int), new(big.Int))
			p.logger.Error("roll back ask",
				zap.Uint64("trade", id),
				zap.Uint64("order", askID),
				zap.Error(cancelErr),
			)
			return id, fmt.Errorf("place bid: %w; ask %d kept as trade %d: %v", err, askID, id, cancelErr)
		}
	}
	return p.record(caller, asset, quote, askID, bidID, askPay, askBuy, bidPay, bidBuy), nil
}

// record stores a placed trade, adds it to the strategist's outstanding set and
// announces it. An empty leg counts as settled.
func (p *Pair) record(strategist, asset, quote common.Address, askID, bidID uint64, askPay, askBuy, bidPay, bidBuy *big.Int) uint64 {
	p.lastID++
	trade := &Trade{
		ID:         p.lastID,
		Strategist: strategist,
		Asset:      asset,
		Quote:      quote,
		AskOrder:   askID,
		BidOrder:   bidID,
		AskPay:     new(big.Int).Set(askPay),
		AskBuy:     new(big.Int).Set(askBuy),
		BidPay:     new(big.Int).Set(bidPay),
		BidBuy:     new(big.Int).Set(bidBuy),
		CreatedAt:  p.now(),
		askSettled: askPay.Sign() == 0,
		bidSettled: bidPay.Sign() == 0,
	}
	p.trades[trade.ID] = trade
	set := p.outstanding[strategist]
	if set == nil {
		set = newTradeSet()
		p.outstanding[strategist] = set
	}
	set.add(trade.ID)

	p.emitter.Emit(model.EventTradeCreated, model.TradeCreated{
		ID:         trade.ID,
		Strategist: strategist.Hex(),
		Asset:      asset.Hex(),
		Quote:      quote.Hex(),
		AskOrder:   askID,
		BidOrder:   bidID,
		AskPay:     askPay.String(),
		AskBuy:     askBuy.String(),
		BidPay:     bidPay.String(),
		BidBuy:     bidBuy.String(),
	})
	p.logger.Info("trade placed",
		zap.Uint64("trade", trade.ID),
		zap.String("strategist", strategist.Hex()),
		zap.Uint64("ask", askID),
		zap.Uint64("bid", bidID),
	)
	return trade.ID
}

func checkLeg(side string, pay, buy *big.Int) error {
	if pay.Sign() < 0 || buy.Sign() < 0 {
		return fmt.Errorf("%s amounts: %w", side, protocol.ErrInvalidAmount)
	}
	if (pay.Sign() == 0) != (buy.Sign() == 0) {
		return fmt.Errorf("%s pays %s for %s: %w", side, pay, buy, protocol.ErrInvalidAmount)
	}
	return nil
}

// crosses reports whether the bid price (quote per asset) reaches the ask price.
// askBuy/askPay <= bidPay/bidBuy, compared without division.
func crosses(askPay, askBuy, bidPay, bidBuy *big.Int) bool {
	left := new(big.Int).Mul(askBuy, bidBuy)
	right := new(big.Int).Mul(bidPay, askPay)
	return left.Cmp(right) <= 0
}
