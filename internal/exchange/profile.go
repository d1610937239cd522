package exchange

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/suwandre/depthwatch/internal/models"
)

// DepthRule is the set of order book depths an exchange accepts: either an
// enumerated list or an inclusive range.
type DepthRule struct {
	Allowed []int
	Min     int
	Max     int
}

func (r DepthRule) Validate(depth int) error {
	if len(r.Allowed) > 0 {
		if slices.Contains(r.Allowed, depth) {
			return nil
		}
	} else if depth >= r.Min && depth <= r.Max {
		return nil
	}
	return fmt.Errorf("%w %d: %s", ErrInvalidDepth, depth, r)
}

func (r DepthRule) String() string {
	if len(r.Allowed) > 0 {
		vals := make([]string, len(r.Allowed))
		for i, v := range r.Allowed {
			vals[i] = fmt.Sprint(v)
		}
		return "must be one of: " + strings.Join(vals, ", ")
	}
	return fmt.Sprintf("must be > %d and <= %d", r.Min-1, r.Max)
}

// AuthHeaders names the headers an exchange reads credentials from.
// Empty names are not sent.
type AuthHeaders struct {
	Key        string
	Sign       string
	Timestamp  string
	Passphrase string
}

// Profile carries everything that differs between exchanges. A Client is a
// generic request/sign/dispatch loop driven by one of these.
type Profile struct {
	Name       string
	BaseURL    string
	TestnetURL string

	Scheme  SigningScheme
	Headers AuthHeaders
	// Query parameter that carries the request timestamp on every call.
	TimestampParam string
	// Query parameter the signature is appended as. Empty means the
	// signature goes in Headers.Sign.
	SignatureParam string

	MinInterval   time.Duration
	MaxConcurrent int64

	PairsPath   string
	PairsParams map[string]string

	// OrderBookPath may contain {symbol}.
	OrderBookPath   string
	OrderBookParams map[string]string
	SymbolParam     string
	DepthParam      string
	Depth           DepthRule
	DefaultDepth    int

	// CheckBody inspects a 200 response for a body-level failure code.
	CheckBody      func(body []byte) error
	ParsePairs     func(body []byte) ([]models.TradingPair, error)
	ParseOrderBook func(body []byte) (rawBook, error)
}

func (p Profile) baseURL(creds *models.Credentials) string {
	if creds != nil && creds.Testnet && p.TestnetURL != "" {
		return p.TestnetURL
	}
	return p.BaseURL
}

func (p Profile) orderBookPath(symbol string) string {
	return strings.ReplaceAll(p.OrderBookPath, "{symbol}", url.PathEscape(symbol))
}

const (
	BingX    = "bingx"
	Bitget   = "bitget"
	Bybit    = "bybit"
	Coinbase = "coinbase"
	BitMart  = "bitmart"
	Gate     = "gate"
)

var profiles = map[string]Profile{
	BingX: {
		Name:           BingX,
		BaseURL:        "https://open-api.bingx.com",
		Scheme:         SchemeSortedQuery,
		Headers:        AuthHeaders{Key: "X-BX-APIKEY"},
		TimestampParam: "timestamp",
		SignatureParam: "signature",
		MinInterval:    100 * time.Millisecond,
		MaxConcurrent:  100,
		PairsPath:      "/openApi/spot/v1/common/symbols",
		OrderBookPath:  "/openApi/spot/v1/market/depth",
		SymbolParam:    "symbol",
		DepthParam:     "limit",
		Depth:          DepthRule{Allowed: []int{5, 10, 20, 50, 100, 500, 1000}},
		DefaultDepth:   5,
		CheckBody:      codeCheck("0"),
		ParsePairs:     parseBingXPairs,
		ParseOrderBook: parseBingXBook,
	},
	Bitget: {
		Name:    Bitget,
		BaseURL: "https://api.bitget.com",
		Scheme:  SchemeTimestampConcat,
		Headers: AuthHeaders{
			Key:        "ACCESS-KEY",
			Sign:       "ACCESS-SIGN",
			Timestamp:  "ACCESS-TIMESTAMP",
			Passphrase: "ACCESS-PASSPHRASE",
		},
		MinInterval:    50 * time.Millisecond,
		MaxConcurrent:  20,
		PairsPath:      "/api/v2/spot/public/symbols",
		OrderBookPath:  "/api/v2/spot/market/orderbook",
		SymbolParam:    "symbol",
		DepthParam:     "limit",
		Depth:          DepthRule{Min: 1, Max: 150},
		DefaultDepth:   5,
		CheckBody:      codeCheck("00000"),
		ParsePairs:     parseBitgetPairs,
		ParseOrderBook: parseBitgetBook,
	},
	Bybit: {
		Name:       Bybit,
		BaseURL:    "https://api.bybit.com/v5",
		TestnetURL: "https://api-testnet.bybit.com/v5",
		Scheme:     SchemeTimestampConcat,
		Headers: AuthHeaders{
			Key:       "X-BAPI-API-KEY",
			Sign:      "X-BAPI-SIGN",
			Timestamp: "X-BAPI-TIMESTAMP",
		},
		MinInterval:     8300 * time.Microsecond,
		MaxConcurrent:   600,
		PairsPath:       "/market/instruments-info",
		PairsParams:     map[string]string{"category": "spot"},
		OrderBookPath:   "/market/orderbook",
		OrderBookParams: map[string]string{"category": "spot"},
		SymbolParam:     "symbol",
		DepthParam:      "limit",
		Depth:           DepthRule{Allowed: []int{1, 25, 50, 100, 200}},
		DefaultDepth:    1,
		CheckBody:       checkBybitBody,
		ParsePairs:      parseBybitPairs,
		ParseOrderBook:  parseBybitBook,
	},
	Coinbase: {
		Name:    Coinbase,
		BaseURL: "https://api.exchange.coinbase.com",
		Scheme:  SchemeTimestampConcat,
		Headers: AuthHeaders{
			Key:        "CB-ACCESS-KEY",
			Sign:       "CB-ACCESS-SIGN",
			Timestamp:  "CB-ACCESS-TIMESTAMP",
			Passphrase: "CB-ACCESS-PASSPHRASE",
		},
		MinInterval:   100 * time.Millisecond,
		MaxConcurrent: 10,
		PairsPath:     "/products",
		// Coinbase has no limit parameter; the level 2 book is truncated locally.
		OrderBookPath:   "/products/{symbol}/book",
		OrderBookParams: map[string]string{"level": "2"},
		Depth:           DepthRule{Min: 1, Max: 50},
		DefaultDepth:    5,
		ParsePairs:      parseCoinbasePairs,
		ParseOrderBook:  parseCoinbaseBook,
	},
	BitMart: {
		Name:    BitMart,
		BaseURL: "https://api-cloud.bitmart.com",
		Scheme:  SchemeTimestampConcat,
		Headers: AuthHeaders{
			Key:       "X-BM-KEY",
			Sign:      "X-BM-SIGN",
			Timestamp: "X-BM-TIMESTAMP",
		},
		MinInterval:    100 * time.Millisecond,
		MaxConcurrent:  15,
		PairsPath:      "/spot/v1/symbols/details",
		OrderBookPath:  "/spot/quotation/v3/books",
		SymbolParam:    "symbol",
		DepthParam:     "limit",
		Depth:          DepthRule{Min: 1, Max: 50},
		DefaultDepth:   5,
		CheckBody:      codeCheck("1000"),
		ParsePairs:     parseBitMartPairs,
		ParseOrderBook: parseBitMartBook,
	},
	Gate: {
		Name:    Gate,
		BaseURL: "https://api.gateio.ws/api/v4",
		Scheme:  SchemeTimestampConcat,
		Headers: AuthHeaders{
			Key:       "KEY",
			Sign:      "SIGN",
			Timestamp: "Timestamp",
		},
		MinInterval:    50 * time.Millisecond,
		MaxConcurrent:  50,
		PairsPath:      "/spot/currency_pairs",
		OrderBookPath:  "/spot/order_book",
		SymbolParam:    "currency_pair",
		DepthParam:     "limit",
		Depth:          DepthRule{Min: 1, Max: 100},
		DefaultDepth:   5,
		ParsePairs:     parseGatePairs,
		ParseOrderBook: parseGateBook,
	},
}

// LookupProfile returns the built-in profile for an exchange name.
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[strings.ToLower(name)]
	return p, ok
}

// ProfileNames lists the supported exchanges in alphabetical order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
