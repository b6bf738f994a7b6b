package pair

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Trade is one market-making quote: an ask selling the asset for the quote and a bid
// selling the quote for the asset, each optional.
type Trade struct {
	ID         uint64
	Strategist common.Address
	Asset      common.Address
	Quote      common.Address
	AskOrder   uint64
	BidOrder   uint64
	AskPay     *big.Int
	AskBuy     *big.Int
	BidPay     *big.Int
	BidBuy     *big.Int
	CreatedAt  time.Time

	askSettled bool
	bidSettled bool
	scrubbed   bool

	// Set once per leg when it settles, so a scrub resumed after a failure still
	// reports both legs.
	askFilled    *big.Int
	askCancelled *big.Int
	bidFilled    *big.Int
	bidCancelled *big.Int
}

// Scrubbed reports whether the trade has been reconciled and removed.
func (t Trade) Scrubbed() bool {
	return t.scrubbed
}

func (t *Trade) clone() Trade {
	out := *t
	out.AskPay = new(big.Int).Set(t.AskPay)
	out.AskBuy = new(big.Int).Set(t.AskBuy)
	out.BidPay = new(big.Int).Set(t.BidPay)
	out.BidBuy = new(big.Int).Set(t.BidBuy)
	return out
}

// tradeSet is an unordered id set with O(1) add and remove.
type tradeSet struct {
	ids   []uint64
	index map[uint64]int
}

func newTradeSet() *tradeSet {
	return &tradeSet{index: make(map[uint64]int)}
}

func (s *tradeSet) add(id uint64) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

// remove swaps the last id into the removed slot.
func (s *tradeSet) remove(id uint64) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.ids) - 1
	moved := s.ids[last]
	s.ids[i] = moved
	s.index[moved] = i
	s.ids = s.ids[:last]
	delete(s.index, id)
	return true
}

func (s *tradeSet) contains(id uint64) bool {
	_, ok := s.index[id]
	return ok
}

func (s *tradeSet) list() []uint64 {
	out := make([]uint64, len(s.ids))
	copy(out, s.ids)
	return out
}
