package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suwandre/depthwatch/internal/models"
)

type fakeStore map[string]*models.Snapshot

func (s fakeStore) GetSnapshot(name string) (*models.Snapshot, bool) {
	snap, ok := s[name]
	return snap, ok
}

func snapshot(exchange, symbol string, bid, ask, qty float64) *models.Snapshot {
	return &models.Snapshot{
		Exchange: exchange,
		OrderBooks: map[string]*models.OrderBook{
			symbol: {
				Exchange: exchange,
				Symbol:   symbol,
				Bids:     []models.OrderBookLevel{{Price: bid, Quantity: qty}},
				Asks:     []models.OrderBookLevel{{Price: ask, Quantity: qty}},
			},
		},
		UpdatedAt: time.Unix(1700000000, 0),
	}
}

func TestNormalizeSymbol(t *testing.T) {
	for _, s := range []string{"BTC-USDT", "BTC_USDT", "btcusdt", "BTC/USDT"} {
		assert.Equal(t, "BTCUSDT", NormalizeSymbol(s), s)
	}
}

func TestScoreAllRanksAcrossExchanges(t *testing.T) {
	store := fakeStore{
		"bingx":  snapshot("bingx", "BTC-USDT", 100, 101, 1),   // wide spread, thin
		"bitget": snapshot("bitget", "BTCUSDT", 100, 100.1, 5), // tight spread, deep
		"gate":   snapshot("gate", "BTC_USDT", 100, 100.5, 3),
	}
	s := NewScorer(store, []string{"bingx", "bitget", "gate", "bybit"})

	scores, err := s.ScoreAll("btc-usdt")
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, "bitget", scores[0].Exchange)
	assert.Equal(t, "gate", scores[1].Exchange)
	assert.Equal(t, "bingx", scores[2].Exchange)

	assert.Equal(t, 1.0, scores[0].DepthScore)
	assert.Equal(t, 0.0, scores[2].DepthScore)
	assert.InDelta(t, 1.0, scores[2].SpreadPct, 1e-9)
	assert.InDelta(t, 201.0, scores[2].BidDepth+scores[2].AskDepth, 1e-9)
	assert.Equal(t, time.Unix(1700000000, 0), scores[0].UpdatedAt)

	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].CompositeScore, scores[i].CompositeScore)
	}
}

func TestScoreAllEqualDepth(t *testing.T) {
	store := fakeStore{"gate": snapshot("gate", "ETH_USDT", 10, 10.01, 2)}
	s := NewScorer(store, []string{"gate"})

	scores, err := s.ScoreAll("ETH_USDT")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 1.0, scores[0].DepthScore)
}

func TestScoreAllSkipsOneSidedBooks(t *testing.T) {
	oneSided := snapshot("bybit", "SOLUSDT", 20, 21, 1)
	oneSided.OrderBooks["SOLUSDT"].Asks = nil

	store := fakeStore{
		"bybit": oneSided,
		"gate":  snapshot("gate", "SOL_USDT", 20, 20.1, 1),
	}
	s := NewScorer(store, []string{"bybit", "gate"})

	scores, err := s.ScoreAll("SOLUSDT")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "gate", scores[0].Exchange)
}

func TestScoreAllNoData(t *testing.T) {
	s := NewScorer(fakeStore{"gate": snapshot("gate", "BTC_USDT", 1, 2, 1)}, []string{"gate", "bingx"})

	_, err := s.ScoreAll("DOGEUSDT")
	assert.ErrorIs(t, err, ErrNoData)
}
