package pair

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/exchange"
	"pairVault/internal/model"
	"pairVault/internal/protocol"
	"pairVault/internal/vault"
)

// ScrubStrategistTrade reconciles a trade with the exchange and removes it. Filled
// volume is dropped from the pool's outstanding counter and credited to the
// strategist's fills under the token the leg bought, which is the token its booty
// arrives in; the unfilled rest is cancelled back into the pool. The owner may scrub
// at any time, anyone else once the cancel delay has passed.
//
// Both order states are read before anything changes. If the second leg fails after
// the first has settled, the trade stays outstanding with the first leg remembered;
// a later scrub settles only what is left and reports both legs.
func (p *Pair) ScrubStrategistTrade(ctx context.Context, caller common.Address, id uint64) error {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	trade, err := p.scrubbable(ctx, caller, id)
	if err != nil {
		return err
	}
	plans, err := p.planScrubs(ctx, []*Trade{trade})
	if err != nil {
		return err
	}
	return p.scrub(ctx, caller, plans[0])
}

// ScrubStrategistTrades scrubs ids in order. Every id is checked and every order
// state read before the first trade is touched, so a bad id or an unreadable order
// fails the batch with no effect. A settlement error stops the batch: trades before
// it are scrubbed and stay scrubbed.
func (p *Pair) ScrubStrategistTrades(ctx context.Context, caller common.Address, ids []uint64) error {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	trades := make([]*Trade, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("trade %d listed twice: %w", id, protocol.ErrAlreadyScrubbed)
		}
		seen[id] = struct{}{}
		trade, err := p.scrubbable(ctx, caller, id)
		if err != nil {
			return err
		}
		trades = append(trades, trade)
	}
	plans, err := p.planScrubs(ctx, trades)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		if err := p.scrub(ctx, caller, plan); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pair) scrubbable(ctx context.Context, caller common.Address, id uint64) (*Trade, error) {
	trade, ok := p.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %d: %w", id, protocol.ErrUnknownTrade)
	}
	if trade.scrubbed {
		return nil, fmt.Errorf("trade %d: %w", id, protocol.ErrAlreadyScrubbed)
	}
	if caller != trade.Strategist {
		expiry := trade.CreatedAt.Add(p.directory.Policy(ctx).CancelDelay)
		if p.now().Before(expiry) {
			return nil, fmt.Errorf("trade %d open until %s: %w", id, expiry.UTC().Format(time.RFC3339), protocol.ErrNotAuthorized)
		}
	}
	return trade, nil
}

// scrubPlan is a trade's settlement computed from the exchange before any change.
// A nil fill marks a leg that settled earlier.
type scrubPlan struct {
	trade     *Trade
	assetPool *vault.Pool
	quotePool *vault.Pool
	askFill   *big.Int
	bidFill   *big.Int
}

// planScrubs reads every unsettled leg's order state and checks that each pool's
// outstanding counter covers what the batch will release from it.
func (p *Pair) planScrubs(ctx context.Context, trades []*Trade) ([]scrubPlan, error) {
	plans := make([]scrubPlan, 0, len(trades))
	release := make(map[*vault.Pool]*big.Int)
	need := func(pool *vault.Pool, amount *big.Int) {
		if release[pool] == nil {
			release[pool] = new(big.Int)
		}
		release[pool].Add(release[pool], amount)
	}

	for _, trade := range trades {
		assetPool, quotePool, err := p.pools(ctx, trade.Asset, trade.Quote)
		if err != nil {
			return nil, err
		}
		plan := scrubPlan{trade: trade, assetPool: assetPool, quotePool: quotePool}
		if !trade.askSettled {
			if plan.askFill, err = p.legFill(ctx, trade.AskOrder, trade.AskPay); err != nil {
				return nil, fmt.Errorf("scrub trade %d ask: %w", trade.ID, err)
			}
			need(assetPool, trade.AskPay)
		}
		if !trade.bidSettled {
			if plan.bidFill, err = p.legFill(ctx, trade.BidOrder, trade.BidPay); err != nil {
				return nil, fmt.Errorf("scrub trade %d bid: %w", trade.ID, err)
			}
			need(quotePool, trade.BidPay)
		}
		plans = append(plans, plan)
	}

	for pool, amount := range release {
		if outstanding := pool.Outstanding(ctx); amount.Cmp(outstanding) > 0 {
			return nil, fmt.Errorf("scrub releases %s of %s outstanding in %s: %w", amount, outstanding, pool.Symbol(), protocol.ErrInvalidAmount)
		}
	}
	return plans, nil
}

// legFill is the filled part of one leg, capped at what the leg paid.
func (p *Pair) legFill(ctx context.Context, orderID uint64, pay *big.Int) (*big.Int, error) {
	if orderID == exchange.NoOrder || pay.Sign() == 0 {
		return new(big.Int), nil
	}
	state, err := p.venue.OrderState(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d state: %w", orderID, err)
	}
	return protocol.Min(protocol.OrZero(state.Filled), pay), nil
}

func (p *Pair) scrub(ctx context.Context, caller common.Address, plan scrubPlan) error {
	trade := plan.trade
	if !trade.askSettled {
		cancelled, err := p.settleLeg(ctx, plan.assetPool, trade.AskOrder, trade.AskPay, plan.askFill)
		if err != nil {
			return fmt.Errorf("scrub trade %d ask: %w", trade.ID, err)
		}
		trade.askSettled = true
		trade.askFilled, trade.askCancelled = plan.askFill, cancelled
		p.creditFill(trade.Strategist, trade.Quote, plan.askFill)
	}
	if !trade.bidSettled {
		cancelled, err := p.settleLeg(ctx, plan.quotePool, trade.BidOrder, trade.BidPay, plan.bidFill)
		if err != nil {
			return fmt.Errorf("scrub trade %d bid: %w", trade.ID, err)
		}
		trade.bidSettled = true
		trade.bidFilled, trade.bidCancelled = plan.bidFill, cancelled
		p.creditFill(trade.Strategist, trade.Asset, plan.bidFill)
	}

	trade.scrubbed = true
	if set := p.outstanding[trade.Strategist]; set != nil {
		set.remove(trade.ID)
		if len(set.ids) == 0 {
			delete(p.outstanding, trade.Strategist)
		}
	}

	askFilled, askCancelled := protocol.OrZero(trade.askFilled), protocol.OrZero(trade.askCancelled)
	bidFilled, bidCancelled := protocol.OrZero(trade.bidFilled), protocol.OrZero(trade.bidCancelled)
	p.emitter.Emit(model.EventTradeScrubbed, model.TradeScrubbed{
		ID:           trade.ID,
		Strategist:   trade.Strategist.Hex(),
		Scrubber:     caller.Hex(),
		AskFilled:    askFilled.String(),
		AskCancelled: askCancelled.String(),
		BidFilled:    bidFilled.String(),
		BidCancelled: bidCancelled.String(),
	})
	p.logger.Info("trade scrubbed",
		zap.Uint64("trade", trade.ID),
		zap.String("scrubber", caller.Hex()),
		zap.String("ask_filled", askFilled.String()),
		zap.String("bid_filled", bidFilled.String()),
	)
	return nil
}

// settleLeg closes one order: the unfilled rest is cancelled back into the pool, then
// the filled part leaves the pool's outstanding counter. It returns the cancelled
// amount; filled + cancelled always equals pay. A failed cancel changes nothing.
func (p *Pair) settleLeg(ctx context.Context, pool *vault.Pool, orderID uint64, pay, filled *big.Int) (*big.Int, error) {
	if orderID == exchange.NoOrder || pay.Sign() == 0 {
		return new(big.Int), nil
	}
	unfilled := new(big.Int).Sub(pay, filled)
	if unfilled.Sign() > 0 {
		if err := pool.Cancel(ctx, p.address, orderID, unfilled); err != nil {
			return nil, err
		}
	}
	if filled.Sign() > 0 {
		if err := pool.RemoveFilledTradeAmount(ctx, p.address, filled); err != nil {
			return nil, err
		}
	}
	return unfilled, nil
}
