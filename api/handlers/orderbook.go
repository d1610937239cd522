package handlers

import (
	"errors"
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/models"
)

type SnapshotStore interface {
	GetSnapshot(exchange string) (*models.Snapshot, bool)
}

type OrderBookHandler struct {
	exchanges map[string]exchange.Exchange
	snapshots SnapshotStore
}

func NewOrderBookHandler(exchanges []exchange.Exchange, snapshots SnapshotStore) *OrderBookHandler {
	byName := make(map[string]exchange.Exchange, len(exchanges))
	for _, ex := range exchanges {
		byName[ex.Name()] = ex
	}
	return &OrderBookHandler{exchanges: byName, snapshots: snapshots}
}

// Handles GET /exchanges.
func (h *OrderBookHandler) ListExchanges(c fiber.Ctx) error {
	names := make([]string, 0, len(h.exchanges))
	for name := range h.exchanges {
		names = append(names, name)
	}
	sort.Strings(names)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"exchanges": names,
	})
}

// Handles GET /exchanges/:exchange/pairs.
func (h *OrderBookHandler) GetPairs(c fiber.Ctx) error {
	ex, ok := h.exchanges[c.Params("exchange")]
	if !ok {
		return notConfigured(c)
	}

	pairs, err := ex.ListTradingPairs(c.Context())
	if err != nil {
		return exchangeError(c, ex.Name(), err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"exchange": ex.Name(),
		"count":    len(pairs),
		"pairs":    pairs,
	})
}

// Handles GET /exchanges/:exchange/orderbook/:symbol?depth=N.
func (h *OrderBookHandler) GetOrderBook(c fiber.Ctx) error {
	ex, ok := h.exchanges[c.Params("exchange")]
	if !ok {
		return notConfigured(c)
	}

	symbol := c.Params("symbol")
	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "symbol parameter is required",
		})
	}

	depth := ex.DefaultDepth()
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "depth must be an integer",
			})
		}
		depth = d
	}

	book, err := ex.GetOrderBook(c.Context(), symbol, depth)
	if err != nil {
		return exchangeError(c, ex.Name(), err)
	}

	return c.Status(fiber.StatusOK).JSON(book)
}

// Handles GET /exchanges/:exchange/orderbooks. Serves the scheduler's cache.
func (h *OrderBookHandler) GetSnapshot(c fiber.Ctx) error {
	ex, ok := h.exchanges[c.Params("exchange")]
	if !ok {
		return notConfigured(c)
	}

	snap, ok := h.snapshots.GetSnapshot(ex.Name())
	if !ok {
		log.Warn().Str("exchange", ex.Name()).Msg("exchange not found in cache")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no snapshot yet, try again after the next refresh",
		})
	}

	return c.Status(fiber.StatusOK).JSON(snap)
}

func notConfigured(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "exchange not configured: " + c.Params("exchange"),
	})
}

func exchangeError(c fiber.Ctx, name string, err error) error {
	status := fiber.StatusBadGateway
	var exErr *exchange.Error
	if errors.As(err, &exErr) {
		switch exErr.Kind {
		case exchange.KindValidation:
			status = fiber.StatusBadRequest
		case exchange.KindCredentials:
			status = fiber.StatusUnauthorized
		}
	}

	log.Warn().Err(err).Str("exchange", name).Int("status", status).Msg("exchange request failed")

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
