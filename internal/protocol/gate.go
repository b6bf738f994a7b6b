package protocol

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PairGate is the capability a Pool consults before a privileged mutation.
type PairGate interface {
	Authorized(caller common.Address) bool
}

// Gate holds the address of the single wired pair. It is a leaf: it never calls out.
type Gate struct {
	mu   sync.RWMutex
	pair common.Address
}

func NewGate() *Gate {
	return &Gate{}
}

// Authorized reports whether caller is the currently wired pair.
func (g *Gate) Authorized(caller common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pair != (common.Address{}) && g.pair == caller
}

// Pair returns the wired pair, or the zero address.
func (g *Gate) Pair() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pair
}

// Set replaces the wired pair.
func (g *Gate) Set(pair common.Address) {
	g.mu.Lock()
	g.pair = pair
	g.mu.Unlock()
}

// StaticGate authorizes exactly one fixed address. Useful for standalone pools.
type StaticGate common.Address

func (s StaticGate) Authorized(caller common.Address) bool {
	return common.Address(s) != (common.Address{}) && common.Address(s) == caller
}
