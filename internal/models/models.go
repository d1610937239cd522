package models

import "time"

// Credentials are supplied once at client construction and never mutated.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string // Coinbase, Bitget
	Testnet    bool   // Bybit
}

type TradingPair struct {
	Symbol string `json:"symbol"`
}

type OrderBookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a single depth snapshot. Bids and asks are ordered best-to-worst.
type OrderBook struct {
	Exchange  string           `json:"exchange"`
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp int64            `json:"timestamp"` // Unix ms
}

// Holds either an order book or the error that prevented fetching it.
type FetchResult struct {
	Symbol string     `json:"symbol"`
	Book   *OrderBook `json:"book,omitempty"`
	Err    error      `json:"-"`
}

func (r FetchResult) OK() bool {
	return r.Err == nil && r.Book != nil
}

// BookScore ranks one exchange's book for a market against the others.
type BookScore struct {
	Exchange       string    `json:"exchange"`
	Symbol         string    `json:"symbol"`
	BestBid        float64   `json:"best_bid"`
	BestAsk        float64   `json:"best_ask"`
	SpreadPct      float64   `json:"spread_pct"`
	BidDepth       float64   `json:"bid_depth"` // quote value on the buy side
	AskDepth       float64   `json:"ask_depth"`
	DepthScore     float64   `json:"depth_score"`
	CompositeScore float64   `json:"composite_score"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Snapshot is the latest aggregated view of one exchange, as kept by the scheduler.
type Snapshot struct {
	Exchange   string                `json:"exchange"`
	Depth      int                   `json:"depth"`
	OrderBooks map[string]*OrderBook `json:"orderbooks"`
	Failed     []string              `json:"failed"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
