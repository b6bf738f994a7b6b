package exchange

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"pairVault/internal/ledger"
)

// Order is a resting limit order held in escrow by the Book.
type Order struct {
	ID         uint64
	Maker      common.Address
	SellAsset  common.Address
	BuyAsset   common.Address
	SellAmount *big.Int
	BuyAmount  *big.Int
	Filled     *big.Int
	Remaining  *big.Int
	Active     bool
}

// Book is a deterministic in-memory venue. Orders never match each other; they fill
// only through Take.
type Book struct {
	address common.Address
	tokens  ledger.Tokens

	mu     sync.Mutex
	nextID uint64
	orders map[uint64]*Order
}

func NewBook(address common.Address, tokens ledger.Tokens) *Book {
	return &Book{
		address: address,
		tokens:  tokens,
		nextID:  1,
		orders:  make(map[uint64]*Order),
	}
}

func (b *Book) Address() common.Address {
	return b.address
}

func (b *Book) PlaceOrder(ctx context.Context, maker common.Address, sellAmount *big.Int, sellAsset common.Address, buyAmount *big.Int, buyAsset common.Address) (uint64, error) {
	if sellAmount == nil || sellAmount.Sign() <= 0 || buyAmount == nil || buyAmount.Sign() <= 0 {
		return NoOrder, fmt.Errorf("place order: amounts must be positive")
	}
	if sellAsset == buyAsset {
		return NoOrder, fmt.Errorf("place order: sell and buy asset are the same")
	}
	if err := b.tokens.TransferFrom(ctx, sellAsset, b.address, maker, b.address, sellAmount); err != nil {
		return NoOrder, fmt.Errorf("escrow sell amount: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.orders[id] = &Order{
		ID:         id,
		Maker:      maker,
		SellAsset:  sellAsset,
		BuyAsset:   buyAsset,
		SellAmount: new(big.Int).Set(sellAmount),
		BuyAmount:  new(big.Int).Set(buyAmount),
		Filled:     new(big.Int),
		Remaining:  new(big.Int).Set(sellAmount),
		Active:     true,
	}
	return id, nil
}

func (b *Book) CancelOrder(ctx context.Context, caller common.Address, id uint64) error {
	b.mu.Lock()
	order, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("cancel %d: %w", id, ErrUnknownOrder)
	}
	if order.Maker != caller {
		b.mu.Unlock()
		return fmt.Errorf("cancel %d: %w", id, ErrNotMaker)
	}
	if !order.Active {
		b.mu.Unlock()
		return fmt.Errorf("cancel %d: %w", id, ErrOrderInactive)
	}
	refund := new(big.Int).Set(order.Remaining)
	order.Remaining.SetInt64(0)
	order.Active = false
	b.mu.Unlock()

	if refund.Sign() == 0 {
		return nil
	}
	if err := b.tokens.Transfer(ctx, order.SellAsset, b.address, order.Maker, refund); err != nil {
		b.mu.Lock()
		order.Remaining.Set(refund)
		order.Active = true
		b.mu.Unlock()
		return fmt.Errorf("refund order %d: %w", id, err)
	}
	return nil
}

func (b *Book) OrderState(_ context.Context, id uint64) (OrderState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return OrderState{}, fmt.Errorf("order %d: %w", id, ErrUnknownOrder)
	}
	return OrderState{
		Filled:    new(big.Int).Set(order.Filled),
		Remaining: new(big.Int).Set(order.Remaining),
		Active:    order.Active,
	}, nil
}

func (b *Book) BestOrder(_ context.Context, sellAsset, buyAsset common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var best *Order
	for _, order := range b.orders {
		if !order.Active || order.SellAsset != sellAsset || order.BuyAsset != buyAsset {
			continue
		}
		if best == nil || cheaper(order, best) {
			best = order
		}
	}
	if best == nil {
		return NoOrder, nil
	}
	return best.ID, nil
}

// Order returns a copy of an order.
func (b *Book) Order(id uint64) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return Order{
		ID:         order.ID,
		Maker:      order.Maker,
		SellAsset:  order.SellAsset,
		BuyAsset:   order.BuyAsset,
		SellAmount: new(big.Int).Set(order.SellAmount),
		BuyAmount:  new(big.Int).Set(order.BuyAmount),
		Filled:     new(big.Int).Set(order.Filled),
		Remaining:  new(big.Int).Set(order.Remaining),
		Active:     order.Active,
	}, true
}

// Take fills up to amount of the order's sell asset for taker. The taker pays the
// maker in the buy asset at the order's price, rounded up, and must have approved the
// book for it. It returns the sell units actually filled.
func (b *Book) Take(ctx context.Context, taker common.Address, id uint64, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("take %d: amount must be positive", id)
	}

	b.mu.Lock()
	order, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("take %d: %w", id, ErrUnknownOrder)
	}
	if !order.Active {
		b.mu.Unlock()
		return nil, fmt.Errorf("take %d: %w", id, ErrOrderInactive)
	}
	fill := new(big.Int).Set(amount)
	if fill.Cmp(order.Remaining) > 0 {
		fill.Set(order.Remaining)
	}
	pay := ceilMulDiv(fill, order.BuyAmount, order.SellAmount)
	maker, sellAsset, buyAsset := order.Maker, order.SellAsset, order.BuyAsset
	// reserve the fill so a concurrent cancel cannot refund it
	order.Remaining.Sub(order.Remaining, fill)
	b.mu.Unlock()

	if err := b.tokens.TransferFrom(ctx, buyAsset, b.address, taker, maker, pay); err != nil {
		b.release(order, fill)
		return nil, fmt.Errorf("take %d: pay maker: %w", id, err)
	}
	if err := b.tokens.Transfer(ctx, sellAsset, b.address, taker, fill); err != nil {
		// escrow backs every reserved fill, so this only fires on a broken ledger
		b.release(order, fill)
		return nil, fmt.Errorf("take %d: deliver: %w", id, err)
	}

	b.mu.Lock()
	order.Filled.Add(order.Filled, fill)
	if order.Remaining.Sign() == 0 {
		order.Active = false
	}
	b.mu.Unlock()
	return fill, nil
}

func (b *Book) release(order *Order, amount *big.Int) {
	b.mu.Lock()
	order.Remaining.Add(order.Remaining, amount)
	b.mu.Unlock()
}

// cheaper reports whether a asks less buy asset per unit sold than b, falling back to
// the older order on a tie.
func cheaper(a, b *Order) bool {
	left := new(big.Int).Mul(a.BuyAmount, b.SellAmount)
	right := new(big.Int).Mul(b.BuyAmount, a.SellAmount)
	switch left.Cmp(right) {
	case -1:
		return true
	case 1:
		return false
	default:
		return a.ID < b.ID
	}
}

func ceilMulDiv(a, b, c *big.Int) *big.Int {
	num := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(num, c, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
