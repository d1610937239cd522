package aggregator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/models"
)

type fakeFetcher struct {
	fail  map[string]error
	calls atomic.Int32
	depth atomic.Int32
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	f.calls.Add(1)
	f.depth.Store(int32(depth))
	if err, ok := f.fail[symbol]; ok {
		return nil, err
	}
	return &models.OrderBook{
		Exchange: "fake",
		Symbol:   symbol,
		Bids:     []models.OrderBookLevel{{Price: 1, Quantity: 1}},
		Asks:     []models.OrderBookLevel{{Price: 2, Quantity: 1}},
	}, nil
}

func pairs(symbols ...string) []models.TradingPair {
	out := make([]models.TradingPair, len(symbols))
	for i, s := range symbols {
		out[i] = models.TradingPair{Symbol: s}
	}
	return out
}

func apiError(msg string) error {
	return &exchange.Error{Exchange: "fake", Kind: exchange.KindAPI, Message: msg}
}

func TestGetAllOrderBooksAllSucceed(t *testing.T) {
	f := &fakeFetcher{}

	results, err := GetAllOrderBooks(context.Background(), f, pairs("BTCUSDT", "ETHUSDT", "SOLUSDT"), 20)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Equal(t, int32(3), f.calls.Load())
	assert.Equal(t, int32(20), f.depth.Load())

	for symbol, r := range results {
		assert.True(t, r.OK())
		assert.Equal(t, symbol, r.Book.Symbol)
	}
	assert.Len(t, Successful(results), 3)
	assert.Empty(t, Failed(results))
}

func TestGetAllOrderBooksPartialFailure(t *testing.T) {
	f := &fakeFetcher{fail: map[string]error{"ETHUSDT": apiError("symbol not found")}}

	results, err := GetAllOrderBooks(context.Background(), f, pairs("BTCUSDT", "ETHUSDT", "SOLUSDT"), 5)
	require.NoError(t, err)

	books := Successful(results)
	assert.Len(t, books, 2)
	assert.Contains(t, books, "BTCUSDT")
	assert.Contains(t, books, "SOLUSDT")
	assert.NotContains(t, books, "ETHUSDT")

	assert.Equal(t, []string{"ETHUSDT"}, Failed(results))
	assert.True(t, exchange.IsKind(results["ETHUSDT"].Err, exchange.KindAPI))
}

func TestGetAllOrderBooksAllFail(t *testing.T) {
	f := &fakeFetcher{fail: map[string]error{
		"BTCUSDT": apiError("down"),
		"ETHUSDT": &exchange.Error{Exchange: "fake", Kind: exchange.KindNetwork, Message: "Network error"},
	}}

	results, err := GetAllOrderBooks(context.Background(), f, pairs("BTCUSDT", "ETHUSDT"), 5)
	require.NoError(t, err)

	assert.Empty(t, Successful(results))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, Failed(results))
}

func TestGetAllOrderBooksEmptyPairs(t *testing.T) {
	results, err := GetAllOrderBooks(context.Background(), &fakeFetcher{}, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetAllOrderBooksUnexpectedErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeFetcher{fail: map[string]error{"ETHUSDT": boom}}

	results, err := GetAllOrderBooks(context.Background(), f, pairs("BTCUSDT", "ETHUSDT"), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
}

func TestGetAllOrderBooksThroughClient(t *testing.T) {
	tests := []struct {
		name     string
		exchange string
		symbols  []string
		handler  http.HandlerFunc
		failed   string
		status   int
	}{
		{
			name:     "gate 400 on one pair",
			exchange: exchange.Gate,
			symbols:  []string{"BTC_USDT", "BAD_USDT", "ETH_USDT"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("currency_pair") == "BAD_USDT" {
					w.WriteHeader(http.StatusBadRequest)
					_, _ = io.WriteString(w, `{"label":"INVALID_CURRENCY_PAIR","message":"Invalid currency pair"}`)
					return
				}
				_, _ = io.WriteString(w, `{"current":1700000000000,"bids":[["100","1"]],"asks":[["101","1"]]}`)
			},
			failed: "BAD_USDT",
			status: http.StatusBadRequest,
		},
		{
			name:     "bingx error code on one pair",
			exchange: exchange.BingX,
			symbols:  []string{"BTC-USDT", "BAD-USDT", "ETH-USDT"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("symbol") == "BAD-USDT" {
					_, _ = io.WriteString(w, `{"code":100204,"msg":"symbol not exist","data":{}}`)
					return
				}
				_, _ = io.WriteString(w, `{"code":0,"data":{"bids":[["100","1"]],"asks":[["101","1"]],"ts":1700000000000}}`)
			},
			failed: "BAD-USDT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			client, err := exchange.New(tt.exchange, nil,
				exchange.WithBaseURL(srv.URL),
				exchange.WithMinInterval(0),
				exchange.WithoutBreaker(),
			)
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })

			results, err := GetAllOrderBooks(context.Background(), client, pairs(tt.symbols...), 5)
			require.NoError(t, err)
			require.Len(t, results, len(tt.symbols))

			books := Successful(results)
			assert.Len(t, books, len(tt.symbols)-1)
			assert.NotContains(t, books, tt.failed)
			for symbol, book := range books {
				assert.Equal(t, symbol, book.Symbol)
				assert.Len(t, book.Bids, 1)
				assert.Len(t, book.Asks, 1)
			}
			assert.Equal(t, []string{tt.failed}, Failed(results))

			var exErr *exchange.Error
			require.ErrorAs(t, results[tt.failed].Err, &exErr)
			assert.Equal(t, exchange.KindAPI, exErr.Kind)
			assert.Equal(t, tt.status, exErr.StatusCode)
		})
	}
}
