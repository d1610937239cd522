package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/metrics"
	"github.com/suwandre/depthwatch/internal/models"
)

type Fetcher interface {
	Name() string
	GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)
}

// Fetches order books for all pairs concurrently and returns one result per
// symbol. Exchange failures (*exchange.Error) are recorded on the symbol's
// result and the batch carries on; any other error aborts the batch.
func GetAllOrderBooks(ctx context.Context, f Fetcher, pairs []models.TradingPair, depth int) (map[string]models.FetchResult, error) {
	results := make(chan models.FetchResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)

	for _, pair := range pairs {
		g.Go(func() error {
			book, err := f.GetOrderBook(gctx, pair.Symbol, depth)
			if err != nil {
				var exErr *exchange.Error
				if !errors.As(err, &exErr) {
					return fmt.Errorf("[%s] orderbook %s: %w", f.Name(), pair.Symbol, err)
				}

				log.Warn().
					Err(err).
					Str("exchange", f.Name()).
					Str("symbol", pair.Symbol).
					Msg("failed to fetch orderbook, skipping")
				metrics.OrderBookFetchesTotal.WithLabelValues(f.Name(), "failure").Inc()

				results <- models.FetchResult{Symbol: pair.Symbol, Err: err}
				return nil
			}

			metrics.OrderBookFetchesTotal.WithLabelValues(f.Name(), "success").Inc()
			results <- models.FetchResult{Symbol: pair.Symbol, Book: book}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.FetchResult, len(pairs))
	for result := range results {
		out[result.Symbol] = result
	}
	return out, nil
}

// Successful keeps only the symbols whose fetch succeeded.
func Successful(results map[string]models.FetchResult) map[string]*models.OrderBook {
	books := make(map[string]*models.OrderBook, len(results))
	for symbol, r := range results {
		if r.OK() {
			books[symbol] = r.Book
		}
	}
	return books
}

// Failed returns the symbols whose fetch failed, sorted.
func Failed(results map[string]models.FetchResult) []string {
	var failed []string
	for symbol, r := range results {
		if !r.OK() {
			failed = append(failed, symbol)
		}
	}
	sort.Strings(failed)
	return failed
}
