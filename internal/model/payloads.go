package model

// Amounts are decimal strings in smallest units, addresses are checksummed hex.

// PoolCreated is emitted when the registry maps an asset to a new pool.
type PoolCreated struct {
	Asset  string `json:"asset"`
	Pool   string `json:"pool"`
	Symbol string `json:"symbol"`
}

// PoolSignaled is emitted by the permissionless creation path.
type PoolSignaled struct {
	Signaler    string `json:"signaler"`
	NewAsset    string `json:"new_asset"`
	NewPool     string `json:"new_pool"`
	Seed        string `json:"seed"`
	PairedAsset string `json:"paired_asset"`
	PairedPool  string `json:"paired_pool"`
	PairedSeed  string `json:"paired_seed"`
}

// Deposited is emitted after a pool deposit.
type Deposited struct {
	Pool         string `json:"pool"`
	Depositor    string `json:"depositor"`
	Receiver     string `json:"receiver"`
	Amount       string `json:"amount"`
	SharesMinted string `json:"shares_minted"`
}

// Withdrawn is emitted after a pool withdrawal.
type Withdrawn struct {
	Pool       string `json:"pool"`
	Withdrawer string `json:"withdrawer"`
	Shares     string `json:"shares"`
	AmountOut  string `json:"amount_out"`
	Fee        string `json:"fee"`
}

// SharesTransferred is emitted when shares change owner.
type SharesTransferred struct {
	Pool   string `json:"pool"`
	From   string `json:"from"`
	To     string `json:"to"`
	Shares string `json:"shares"`
}

// FeesSwept is emitted when accrued withdraw fees leave a pool.
type FeesSwept struct {
	Pool   string `json:"pool"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// TradeCreated is emitted when a strategist places a market-making trade.
type TradeCreated struct {
	ID         uint64 `json:"id"`
	Strategist string `json:"strategist"`
	Asset      string `json:"asset"`
	Quote      string `json:"quote"`
	AskOrder   uint64 `json:"ask_order"`
	BidOrder   uint64 `json:"bid_order"`
	AskPay     string `json:"ask_pay"`
	AskBuy     string `json:"ask_buy"`
	BidPay     string `json:"bid_pay"`
	BidBuy     string `json:"bid_buy"`
}

// TradeScrubbed is emitted when a trade is reconciled and removed.
type TradeScrubbed struct {
	ID           uint64 `json:"id"`
	Strategist   string `json:"strategist"`
	Scrubber     string `json:"scrubber"`
	AskFilled    string `json:"ask_filled"`
	AskCancelled string `json:"ask_cancelled"`
	BidFilled    string `json:"bid_filled"`
	BidCancelled string `json:"bid_cancelled"`
}

// Rebalanced is emitted when misplaced balances move between a pair's pools.
type Rebalanced struct {
	Asset       string `json:"asset"`
	Quote       string `json:"quote"`
	AssetAmount string `json:"asset_amount"`
	QuoteAmount string `json:"quote_amount"`
	AssetCut    string `json:"asset_cut"`
	QuoteCut    string `json:"quote_cut"`
}

// Claimed is emitted when a strategist claims booty.
type Claimed struct {
	Strategist  string `json:"strategist"`
	Asset       string `json:"asset"`
	Quote       string `json:"quote"`
	AssetAmount string `json:"asset_amount"`
	QuoteAmount string `json:"quote_amount"`
}

// PairWired is emitted when the registry wires (or rewires) the pair.
type PairWired struct {
	Previous        string `json:"previous"`
	Pair            string `json:"pair"`
	ReserveRatioBps uint64 `json:"reserve_ratio_bps"`
	CancelDelay     string `json:"cancel_delay"`
}

// StrategistChanged is the payload of approve and revoke events.
type StrategistChanged struct {
	Strategist string `json:"strategist"`
}

// PolicyChanged records an admin setter.
type PolicyChanged struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Pool  string `json:"pool,omitempty"`
}
