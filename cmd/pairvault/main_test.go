package main

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pairVault/internal/registry"
	"pairVault/internal/sim"
)

func TestCurveRows(t *testing.T) {
	policy := registry.DefaultPolicy()
	rows := curveRows(big.NewInt(1_000_000), policy, 4)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	// band = 200000, cap = 50000: idle pool gets the full cap, a full band nothing.
	if rows[0].MaxOrder.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("idle max order = %s", rows[0].MaxOrder)
	}
	if rows[4].MaxOrder.Sign() != 0 || rows[4].Outstanding.Cmp(big.NewInt(200_000)) != 0 {
		t.Fatalf("full band row = %+v", rows[4])
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].MaxOrder.Cmp(rows[i-1].MaxOrder) > 0 {
			t.Fatalf("curve must not grow with utilization at row %d", i)
		}
	}

	var out bytes.Buffer
	if err := writeCurve(&out, rows); err != nil {
		t.Fatalf("write curve: %v", err)
	}
	if !strings.Contains(out.String(), "50.0%") {
		t.Fatalf("missing utilization column:\n%s", out.String())
	}
}

func TestSymbolTable(t *testing.T) {
	hex := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	table := symbolTable(map[string]string{hex: "USDC", "weth": "WETH"})
	if table[common.HexToAddress(hex)] != "USDC" {
		t.Fatalf("hex key not resolved: %v", table)
	}
	if table[sim.Actor("weth")] != "WETH" {
		t.Fatalf("name key not resolved: %v", table)
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairvault.log")
	logger, err := newLogger("info", path)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log line missing: %s", data)
	}

	if _, err := newLogger("loud", ""); err == nil {
		t.Fatalf("expected error for bad level")
	}
}
