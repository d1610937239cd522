package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/suwandre/depthwatch/internal/models"
	"github.com/suwandre/depthwatch/internal/scorer"
)

type Ranker interface {
	ScoreAll(symbol string) ([]*models.BookScore, error)
}

type ScoreHandler struct {
	ranker Ranker
}

func NewScoreHandler(ranker Ranker) *ScoreHandler {
	return &ScoreHandler{ranker}
}

// Handles GET /scores/:symbol.
func (h *ScoreHandler) GetScores(c fiber.Ctx) error {
	symbol := c.Params("symbol")

	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "symbol parameter is required",
		})
	}

	log.Info().
		Str("symbol", symbol).
		Msg("ranking orderbooks")

	scores, err := h.ranker.ScoreAll(symbol)
	if err != nil {
		if errors.Is(err, scorer.ErrNoData) {
			log.Warn().Str("symbol", symbol).Msg("symbol not found in cache")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "symbol not available, check configured pairs",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"symbol": symbol,
		"scores": scores,
	})
}
