package scorer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/suwandre/depthwatch/internal/models"
)

var ErrNoData = errors.New("no orderbook data available")

type SnapshotStore interface {
	GetSnapshot(exchange string) (*models.Snapshot, bool)
}

// Scorer ranks the cached books of one market across exchanges.
type Scorer struct {
	store     SnapshotStore
	exchanges []string
}

func NewScorer(store SnapshotStore, exchanges []string) *Scorer {
	return &Scorer{store: store, exchanges: exchanges}
}

// Scores the latest cached book for symbol on every exchange and returns
// them ranked, highest CompositeScore first. Symbols match regardless of
// separator and case, so "BTC-USDT" and "btc_usdt" are the same market.
func (s *Scorer) ScoreAll(symbol string) ([]*models.BookScore, error) {
	want := NormalizeSymbol(symbol)

	var scores []*models.BookScore
	for _, name := range s.exchanges {
		snap, ok := s.store.GetSnapshot(name)
		if !ok {
			continue
		}

		book := findBook(snap, want)
		if book == nil {
			continue
		}

		score, err := scoreBook(book)
		if err != nil {
			log.Warn().Err(err).Str("exchange", name).Str("symbol", book.Symbol).Msg("failed to score orderbook, skipping")
			continue
		}
		score.UpdatedAt = snap.UpdatedAt
		scores = append(scores, score)
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	normalizeDepth(scores)

	for _, score := range scores {
		score.CompositeScore = (1/(1+score.SpreadPct))*0.6 + score.DepthScore*0.4
	}

	rankScores(scores)
	return scores, nil
}

// NormalizeSymbol maps an exchange symbol to a comparable key.
func NormalizeSymbol(symbol string) string {
	return strings.NewReplacer("-", "", "_", "", "/", "").Replace(strings.ToUpper(symbol))
}

func findBook(snap *models.Snapshot, want string) *models.OrderBook {
	if book, ok := snap.OrderBooks[want]; ok {
		return book
	}
	for symbol, book := range snap.OrderBooks {
		if NormalizeSymbol(symbol) == want {
			return book
		}
	}
	return nil
}

func scoreBook(book *models.OrderBook) (*models.BookScore, error) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, fmt.Errorf("one-sided book (%d bids, %d asks)", len(book.Bids), len(book.Asks))
	}

	bid, ask := book.Bids[0].Price, book.Asks[0].Price

	spreadPct := 0.0
	if bid > 0 {
		spreadPct = (ask - bid) / bid * 100
	}

	bidDepth := sumDepth(book.Bids)
	askDepth := sumDepth(book.Asks)

	return &models.BookScore{
		Exchange:   book.Exchange,
		Symbol:     book.Symbol,
		BestBid:    bid,
		BestAsk:    ask,
		SpreadPct:  spreadPct,
		BidDepth:   bidDepth,
		AskDepth:   askDepth,
		DepthScore: bidDepth + askDepth, // normalized in ScoreAll
	}, nil
}

// Sums quote value (price * quantity) across levels.
func sumDepth(levels []models.OrderBookLevel) float64 {
	total := 0.0
	for _, level := range levels {
		total += level.Price * level.Quantity
	}
	return total
}

// Sorts scores in-place, highest CompositeScore first.
func rankScores(scores []*models.BookScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].CompositeScore > scores[j].CompositeScore
	})
}

// Normalizes depth scores so they range from 0 to 1.
func normalizeDepth(scores []*models.BookScore) {
	minD, maxD := scores[0].DepthScore, scores[0].DepthScore
	for _, s := range scores[1:] {
		minD = min(minD, s.DepthScore)
		maxD = max(maxD, s.DepthScore)
	}

	for _, s := range scores {
		if maxD == minD {
			s.DepthScore = 1.0
		} else {
			s.DepthScore = (s.DepthScore - minD) / (maxD - minD)
		}
	}
}
