package exchange

import (
	"context"

	"github.com/suwandre/depthwatch/internal/models"
)

// Exchange is what the scheduler and API need from a client. *Client
// satisfies it for every built-in profile.
type Exchange interface {
	Name() string
	DefaultDepth() int
	ListTradingPairs(ctx context.Context) ([]models.TradingPair, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)
}

var _ Exchange = (*Client)(nil)
