package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Op is one line of a scenario file. Account fields take a hex address, a named
// actor ("alice"), a deployment role ("admin", "registry", "pair", "exchange",
// "zero") or "pool:<asset>". An empty caller acts as the admin.
type Op struct {
	Op     string `json:"op"`
	Caller string `json:"caller,omitempty"`

	Token       string `json:"token,omitempty"`
	Asset       string `json:"asset,omitempty"`
	Quote       string `json:"quote,omitempty"`
	PairedAsset string `json:"paired_asset,omitempty"`
	To          string `json:"to,omitempty"`
	Spender     string `json:"spender,omitempty"`
	Account     string `json:"account,omitempty"`
	Recipient   string `json:"recipient,omitempty"`

	Amount      string `json:"amount,omitempty"`
	PairedSeed  string `json:"paired_seed,omitempty"`
	Shares      string `json:"shares,omitempty"`
	AskPay      string `json:"ask_pay,omitempty"`
	AskBuy      string `json:"ask_buy,omitempty"`
	BidPay      string `json:"bid_pay,omitempty"`
	BidBuy      string `json:"bid_buy,omitempty"`
	AssetAmount string `json:"asset_amount,omitempty"`
	QuoteAmount string `json:"quote_amount,omitempty"`

	Order  uint64   `json:"order,omitempty"`
	Trade  uint64   `json:"trade,omitempty"`
	Side   string   `json:"side,omitempty"`
	Trades []uint64 `json:"trades,omitempty"`

	Bps      *uint64 `json:"bps,omitempty"`
	Delay    string  `json:"delay,omitempty"`
	Field    string  `json:"field,omitempty"`
	Value    string  `json:"value,omitempty"`
	Duration string  `json:"duration,omitempty"`

	// ExpectError names the error kind the op must fail with, e.g. "OrderTooLarge".
	ExpectError string `json:"expect_error,omitempty"`

	Line int `json:"-"`
}

var knownOps = map[string]struct{}{
	"mint":               {},
	"approve":            {},
	"transfer":           {},
	"create_pool":        {},
	"open_pool":          {},
	"wire_pair":          {},
	"rewire_pair":        {},
	"approve_strategist": {},
	"revoke_strategist":  {},
	"set_policy":         {},
	"set_pool_fee":       {},
	"set_fee_recipient":  {},
	"sweep_fees":         {},
	"deposit":            {},
	"withdraw":           {},
	"transfer_shares":    {},
	"place":              {},
	"take":               {},
	"scrub":              {},
	"scrub_batch":        {},
	"rebalance":          {},
	"claim":              {},
	"advance":            {},
}

// ReadOps loads a scenario file.
func ReadOps(path string) ([]Op, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()
	return ParseOps(file)
}

// ParseOps reads one JSON op per line. Blank lines and lines starting with '#' are
// skipped; unknown ops and unknown fields are rejected.
func ParseOps(r io.Reader) ([]Op, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []Op
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var op Op
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("line %d: decode op: %w", line, err)
		}
		if _, ok := knownOps[op.Op]; !ok {
			return nil, fmt.Errorf("line %d: unknown op %q", line, op.Op)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ops, nil
}
