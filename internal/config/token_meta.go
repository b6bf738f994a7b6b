package config

import (
	"time"

	"github.com/spf13/pflag"
)

// TokenMetaConfig reads ERC20 metadata and balances over RPC.
type TokenMetaConfig struct {
	RPCURL       string
	Tokens       []string
	Holder       string
	Block        uint64
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

func LoadTokenMeta(cfgFile string, flags *pflag.FlagSet) (TokenMetaConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return TokenMetaConfig{}, err
	}

	return TokenMetaConfig{
		RPCURL:       v.GetString("rpc"),
		Tokens:       getStringSlice(v, "token"),
		Holder:       v.GetString("holder"),
		Block:        v.GetUint64("block"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
