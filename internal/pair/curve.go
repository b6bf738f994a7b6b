package pair

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pairVault/internal/protocol"
	"pairVault/internal/registry"
	"pairVault/internal/vault"
)

// MaxOrderSize is the sizing curve. With T total assets, O outstanding and the
// borrowable band B = T*(10000-reserveBps)/10000:
//
//	free = B - O
//	cap  = T*maxOrderBps/10000
//	size = min(free, cap * free^k / B^k)
//
// It is zero once O reaches B, so placing the returned size never pushes O past B.
func MaxOrderSize(total, outstanding *big.Int, reserveBps, maxOrderBps, shape uint64) *big.Int {
	total = protocol.OrZero(total)
	outstanding = protocol.OrZero(outstanding)
	if total.Sign() <= 0 || reserveBps >= protocol.BpsDenominator {
		return new(big.Int)
	}
	band := protocol.ApplyBps(total, protocol.BpsDenominator-reserveBps)
	if outstanding.Cmp(band) >= 0 {
		return new(big.Int)
	}
	free := new(big.Int).Sub(band, outstanding)
	limit := protocol.ApplyBps(total, maxOrderBps)

	k := new(big.Int).SetUint64(shape)
	num := new(big.Int).Mul(limit, new(big.Int).Exp(free, k, nil))
	size := num.Quo(num, new(big.Int).Exp(band, k, nil))
	return protocol.Min(free, size)
}

// GetMaxOrderSize returns the largest order the pool of asset can take right now.
func (p *Pair) GetMaxOrderSize(ctx context.Context, asset common.Address) (*big.Int, error) {
	defer p.guard.View(ctx)()
	pool, err := p.directory.Pool(ctx, asset)
	if err != nil {
		return nil, err
	}
	return p.maxOrderSize(ctx, pool, p.directory.Policy(ctx))
}

func (p *Pair) maxOrderSize(ctx context.Context, pool *vault.Pool, policy registry.Policy) (*big.Int, error) {
	total, err := pool.TotalAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("total assets: %w", err)
	}
	return MaxOrderSize(total, pool.Outstanding(ctx), policy.ReserveRatioBps, policy.MaxOrderSizeBps, policy.CurveShape), nil
}
