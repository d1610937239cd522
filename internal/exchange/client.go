package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/suwandre/depthwatch/internal/models"
)

type clientConfig struct {
	profile       Profile
	baseURL       string
	timeout       time.Duration
	proxyAddr     string
	minInterval   time.Duration
	maxConcurrent int64
	breaker       bool
}

type Option func(*clientConfig)

// WithBaseURL overrides the profile's base URL (and testnet URL).
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithProxy routes the transport through a SOCKS5 proxy at host:port.
func WithProxy(addr string) Option {
	return func(c *clientConfig) { c.proxyAddr = addr }
}

func WithMinInterval(d time.Duration) Option {
	return func(c *clientConfig) { c.minInterval = d }
}

func WithMaxConcurrent(n int64) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithoutBreaker disables the circuit breaker around the transport.
func WithoutBreaker() Option {
	return func(c *clientConfig) { c.breaker = false }
}

// Client talks to one exchange. All exchanges share this implementation; the
// differences live in its Profile.
type Client struct {
	profile Profile
	creds   *models.Credentials
	d       *dispatcher
}

// NewClient builds a client for profile. creds may be nil for public access.
func NewClient(profile Profile, creds *models.Credentials, opts ...Option) *Client {
	var held *models.Credentials
	if creds != nil {
		c := *creds
		held = &c
	}

	cfg := clientConfig{
		profile:       profile,
		baseURL:       profile.baseURL(held),
		timeout:       10 * time.Second,
		minInterval:   profile.MinInterval,
		maxConcurrent: profile.MaxConcurrent,
		breaker:       true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxConcurrent <= 0 {
		cfg.maxConcurrent = 1
	}

	return &Client{
		profile: profile,
		creds:   held,
		d:       newDispatcher(cfg, held),
	}
}

// New builds a client for a built-in exchange by name.
func New(name string, creds *models.Credentials, opts ...Option) (*Client, error) {
	profile, ok := LookupProfile(name)
	if !ok {
		return nil, fmt.Errorf("unsupported exchange %q", name)
	}
	return NewClient(profile, creds, opts...), nil
}

func (c *Client) Name() string {
	return c.profile.Name
}

func (c *Client) DefaultDepth() int {
	return c.profile.DefaultDepth
}

// Open eagerly creates the transport session. Requests open one on demand,
// so calling Open is optional.
func (c *Client) Open() {
	c.d.open()
}

// Close releases the transport session. The client stays usable; the next
// request opens a fresh session.
func (c *Client) Close() error {
	c.d.close()
	return nil
}

// Do sends a raw request through the client's rate limiter and signer and
// returns the response body.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	return c.d.do(ctx, req)
}

// Fetches the exchange's symbol list and keeps only pairs flagged as active.
func (c *Client) ListTradingPairs(ctx context.Context) ([]models.TradingPair, error) {
	body, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   c.profile.PairsPath,
		Params: c.profile.PairsParams,
	})
	if err != nil {
		return nil, err
	}

	pairs, err := c.profile.ParsePairs(body)
	if err != nil {
		return nil, newError(c.profile.Name, KindUnexpected, "failed to parse trading pairs", err)
	}
	return pairs, nil
}

// Fetches an order book snapshot with at most depth levels per side.
// depth is validated before any network call.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	p := c.profile
	if err := p.Depth.Validate(depth); err != nil {
		return nil, newError(p.Name, KindValidation, "Limit "+p.Depth.String(), err)
	}

	params := make(map[string]string, len(p.OrderBookParams)+2)
	for k, v := range p.OrderBookParams {
		params[k] = v
	}
	if p.SymbolParam != "" {
		params[p.SymbolParam] = symbol
	}
	if p.DepthParam != "" {
		params[p.DepthParam] = strconv.Itoa(depth)
	}

	body, err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     p.orderBookPath(symbol),
		Endpoint: p.OrderBookPath,
		Params:   params,
	})
	if err != nil {
		return nil, err
	}
	received := time.Now()

	raw, err := p.ParseOrderBook(body)
	if err != nil {
		return nil, newError(p.Name, KindUnexpected, "failed to parse order book for "+symbol, err)
	}

	bids, asks, err := raw.levels(depth)
	if err != nil {
		return nil, newError(p.Name, KindUnexpected, "malformed order book for "+symbol, err)
	}

	ts := raw.Timestamp
	if ts == 0 {
		ts = received.UnixMilli()
	}

	return &models.OrderBook{
		Exchange:  p.Name,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
	}, nil
}
