package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairVault/internal/chain"
	"pairVault/internal/config"
	"pairVault/internal/model"
	"pairVault/internal/retry"
	"pairVault/internal/token"
)

type tokenReport struct {
	model.TokenMeta
	Holder  string `json:"holder,omitempty"`
	Balance string `json:"balance,omitempty"`
	Block   uint64 `json:"block,omitempty"`
}

func runTokenMeta(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTokenMeta(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	tokens, err := token.ParseAddresses(cfg.Tokens)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("token list is required")
	}
	var holder common.Address
	if cfg.Holder != "" {
		if !common.IsHexAddress(cfg.Holder) {
			return fmt.Errorf("invalid holder: %s", cfg.Holder)
		}
		holder = common.HexToAddress(cfg.Holder)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	// Balances of every token are read at the same block.
	blockNumber := cfg.Block
	if cfg.Holder != "" && blockNumber == 0 {
		blockNumber, err = chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}
	block := new(big.Int).SetUint64(blockNumber)
	logger.Info("token meta start",
		zap.String("chain_id", chainID.String()),
		zap.Int("tokens", len(tokens)),
		zap.Uint64("block", blockNumber),
	)

	resolver := token.NewResolver(chainClient, token.NewCache(), cfg.MaxRetries, cfg.RetryBackoff, logger)
	encoder := json.NewEncoder(cmd.OutOrStdout())

	for _, addr := range tokens {
		meta, err := resolver.Meta(ctx, addr)
		if err != nil {
			return err
		}
		report := tokenReport{TokenMeta: meta}
		if cfg.Holder != "" {
			var balance *big.Int
			err := retry.Do(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
				var err error
				balance, err = token.BalanceOf(ctx, chainClient, addr, holder, block)
				return err
			})
			if err != nil {
				return fmt.Errorf("balance of %s: %w", addr.Hex(), err)
			}
			report.Holder = holder.Hex()
			report.Balance = balance.String()
			report.Block = blockNumber
		}
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Debug("token meta", zap.String("token", addr.Hex()), zap.Bool("partial", meta.Partial))
	}
	return nil
}
