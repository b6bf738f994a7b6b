package sim

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/amount"
	"pairVault/internal/exchange"
	"pairVault/internal/vault"
)

func (r *Runner) apply(ctx context.Context, op Op) error {
	caller, err := r.address(ctx, op.Caller)
	if err != nil {
		return err
	}
	if op.Caller == "" {
		caller = r.cfg.Admin
	}

	switch op.Op {
	case "mint":
		token, to, value, err := r.tokenMove(ctx, op.Token, op.To, op.Amount)
		if err != nil {
			return err
		}
		r.tokens.Mint(token, to, value)
		return nil

	case "approve":
		token, spender, value, err := r.tokenMove(ctx, op.Token, op.Spender, op.Amount)
		if err != nil {
			return err
		}
		return r.tokens.Approve(ctx, token, caller, spender, value)

	case "transfer":
		token, to, value, err := r.tokenMove(ctx, op.Token, op.To, op.Amount)
		if err != nil {
			return err
		}
		return r.tokens.Transfer(ctx, token, caller, to, value)

	case "create_pool":
		asset, recipient, err := r.addresses(ctx, op.Asset, op.Recipient)
		if err != nil {
			return err
		}
		_, err = r.reg.CreatePool(ctx, caller, asset, recipient)
		return err

	case "open_pool":
		asset, paired, err := r.addresses(ctx, op.Asset, op.PairedAsset)
		if err != nil {
			return err
		}
		seed, pairedSeed, err := amounts(op.Amount, op.PairedSeed)
		if err != nil {
			return err
		}
		_, err = r.reg.OpenPoolAndSignal(ctx, caller, asset, seed, paired, pairedSeed)
		return err

	case "wire_pair", "rewire_pair":
		target := r.cfg.Pair
		if op.Account != "" {
			if target, err = r.address(ctx, op.Account); err != nil {
				return err
			}
		}
		if op.Op == "rewire_pair" {
			return r.reg.RewirePair(ctx, caller, target)
		}
		policy := r.reg.Policy(ctx)
		reserve := policy.ReserveRatioBps
		if op.Bps != nil {
			reserve = *op.Bps
		}
		delay := policy.CancelDelay
		if op.Delay != "" {
			if delay, err = time.ParseDuration(op.Delay); err != nil {
				return fmt.Errorf("parse delay: %w", err)
			}
		}
		return r.reg.WirePair(ctx, caller, target, reserve, delay)

	case "approve_strategist", "revoke_strategist":
		account, err := r.address(ctx, op.Account)
		if err != nil {
			return err
		}
		if op.Op == "approve_strategist" {
			return r.reg.ApproveStrategist(ctx, caller, account)
		}
		return r.reg.RevokeStrategist(ctx, caller, account)

	case "set_policy":
		return r.setPolicy(ctx, caller, op.Field, op.Value)

	case "set_pool_fee":
		asset, err := r.address(ctx, op.Asset)
		if err != nil {
			return err
		}
		if op.Bps == nil {
			return fmt.Errorf("bps is required")
		}
		return r.reg.SetPoolFeeBps(ctx, caller, asset, *op.Bps)

	case "set_fee_recipient":
		asset, recipient, err := r.addresses(ctx, op.Asset, op.Recipient)
		if err != nil {
			return err
		}
		return r.reg.SetPoolFeeRecipient(ctx, caller, asset, recipient)

	case "sweep_fees":
		asset, to, err := r.addresses(ctx, op.Asset, op.To)
		if err != nil {
			return err
		}
		_, err = r.reg.SweepPoolFees(ctx, caller, asset, to)
		return err

	case "deposit":
		pool, err := r.pool(ctx, op.Asset)
		if err != nil {
			return err
		}
		value, err := amount.Parse(op.Amount)
		if err != nil {
			return err
		}
		receiver := caller
		if op.To != "" {
			if receiver, err = r.address(ctx, op.To); err != nil {
				return err
			}
		}
		_, err = pool.Deposit(ctx, caller, value, receiver)
		return err

	case "withdraw":
		pool, err := r.pool(ctx, op.Asset)
		if err != nil {
			return err
		}
		shares, err := amount.Parse(op.Shares)
		if err != nil {
			return err
		}
		_, err = pool.Withdraw(ctx, caller, shares)
		return err

	case "transfer_shares":
		pool, err := r.pool(ctx, op.Asset)
		if err != nil {
			return err
		}
		to, err := r.address(ctx, op.To)
		if err != nil {
			return err
		}
		shares, err := amount.Parse(op.Shares)
		if err != nil {
			return err
		}
		return pool.TransferShares(ctx, caller, to, shares)

	case "place":
		asset, quote, err := r.addresses(ctx, op.Asset, op.Quote)
		if err != nil {
			return err
		}
		askPay, askBuy, err := amounts(op.AskPay, op.AskBuy)
		if err != nil {
			return err
		}
		bidPay, bidBuy, err := amounts(op.BidPay, op.BidBuy)
		if err != nil {
			return err
		}
		id, err := r.pair.PlaceMarketMakingTrades(ctx, caller, asset, quote, askPay, askBuy, bidPay, bidBuy)
		if err != nil {
			return err
		}
		r.logger.Debug("trade placed", zap.Int("line", op.Line), zap.Uint64("trade", id))
		return nil

	case "take":
		return r.take(ctx, caller, op)

	case "scrub":
		return r.pair.ScrubStrategistTrade(ctx, caller, op.Trade)

	case "scrub_batch":
		return r.pair.ScrubStrategistTrades(ctx, caller, op.Trades)

	case "rebalance":
		asset, quote, err := r.addresses(ctx, op.Asset, op.Quote)
		if err != nil {
			return err
		}
		assetAmount, quoteAmount, err := amounts(op.AssetAmount, op.QuoteAmount)
		if err != nil {
			return err
		}
		return r.pair.RebalancePair(ctx, caller, assetAmount, quoteAmount, asset, quote)

	case "claim":
		asset, quote, err := r.addresses(ctx, op.Asset, op.Quote)
		if err != nil {
			return err
		}
		_, _, err = r.pair.StrategistBootyClaim(ctx, caller, asset, quote)
		return err

	case "advance":
		d, err := time.ParseDuration(op.Duration)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("duration %s is negative", d)
		}
		r.clock.Advance(d)
		return nil

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// take fills a resting order for caller. The order is given directly, or as a
// trade id plus "ask" or "bid". The taker's payment is approved to the exchange
// automatically.
func (r *Runner) take(ctx context.Context, caller common.Address, op Op) error {
	id := op.Order
	if id == exchange.NoOrder {
		trade, err := r.pair.Trade(ctx, op.Trade)
		if err != nil {
			return err
		}
		switch op.Side {
		case "ask":
			id = trade.AskOrder
		case "bid":
			id = trade.BidOrder
		default:
			return fmt.Errorf("side must be ask or bid, got %q", op.Side)
		}
	}
	order, ok := r.book.Order(id)
	if !ok {
		return fmt.Errorf("take %d: %w", id, exchange.ErrUnknownOrder)
	}
	value, err := amount.Parse(op.Amount)
	if err != nil {
		return err
	}
	if value.Sign() == 0 {
		value = order.Remaining
	}
	pay := new(big.Int).Mul(value, order.BuyAmount)
	pay.Add(pay, new(big.Int).Sub(order.SellAmount, big.NewInt(1)))
	pay.Quo(pay, order.SellAmount)
	if err := r.tokens.Approve(ctx, order.BuyAsset, caller, r.book.Address(), pay); err != nil {
		return err
	}
	_, err = r.book.Take(ctx, caller, id, value)
	return err
}

func (r *Runner) setPolicy(ctx context.Context, caller common.Address, field, value string) error {
	switch field {
	case "reserve_ratio_bps", "profit_share_bps", "max_order_size_bps", "curve_shape":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		switch field {
		case "reserve_ratio_bps":
			return r.reg.SetReserveRatio(ctx, caller, n)
		case "profit_share_bps":
			return r.reg.SetProfitShare(ctx, caller, n)
		case "max_order_size_bps":
			return r.reg.SetMaxOrderSize(ctx, caller, n)
		default:
			return r.reg.SetCurveShape(ctx, caller, n)
		}
	case "cancel_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		return r.reg.SetCancelDelay(ctx, caller, d)
	case "permissioned_strategists":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		return r.reg.SetPermissionedStrategists(ctx, caller, b)
	case "admin":
		admin, err := r.address(ctx, value)
		if err != nil {
			return err
		}
		return r.reg.SetAdmin(ctx, caller, admin)
	default:
		return fmt.Errorf("unknown policy field %q", field)
	}
}

// address resolves an account reference. See Op for the accepted forms.
func (r *Runner) address(ctx context.Context, name string) (common.Address, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "", name == "zero":
		return common.Address{}, nil
	case common.IsHexAddress(name):
		return common.HexToAddress(name), nil
	case strings.HasPrefix(name, "0x"):
		return common.Address{}, fmt.Errorf("invalid address: %s", name)
	case name == "admin":
		return r.cfg.Admin, nil
	case name == "registry":
		return r.cfg.Registry, nil
	case name == "pair":
		return r.cfg.Pair, nil
	case name == "exchange":
		return r.cfg.Exchange, nil
	case strings.HasPrefix(name, "pool:"):
		pool, err := r.pool(ctx, strings.TrimPrefix(name, "pool:"))
		if err != nil {
			return common.Address{}, err
		}
		return pool.Address(), nil
	default:
		return Actor(name), nil
	}
}

func (r *Runner) addresses(ctx context.Context, a, b string) (common.Address, common.Address, error) {
	first, err := r.address(ctx, a)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	second, err := r.address(ctx, b)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return first, second, nil
}

func (r *Runner) pool(ctx context.Context, asset string) (*vault.Pool, error) {
	addr, err := r.address(ctx, asset)
	if err != nil {
		return nil, err
	}
	return r.reg.Pool(ctx, addr)
}

func (r *Runner) tokenMove(ctx context.Context, token, account, value string) (common.Address, common.Address, *big.Int, error) {
	tokenAddr, accountAddr, err := r.addresses(ctx, token, account)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	parsed, err := amount.Parse(value)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return tokenAddr, accountAddr, parsed, nil
}

func amounts(a, b string) (*big.Int, *big.Int, error) {
	first, err := amount.Parse(a)
	if err != nil {
		return nil, nil, err
	}
	second, err := amount.Parse(b)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}
