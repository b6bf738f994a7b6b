package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Symbols resolves pool symbols from a fixed table first and then, when set, from
// the chain.
type Symbols struct {
	Static   map[common.Address]string
	Resolver *Resolver
}

func (s Symbols) Symbol(ctx context.Context, token common.Address) (string, error) {
	if symbol, ok := s.Static[token]; ok {
		return symbol, nil
	}
	if s.Resolver == nil {
		return "", fmt.Errorf("no symbol known for %s", token.Hex())
	}
	return s.Resolver.Symbol(ctx, token)
}
