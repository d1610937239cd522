package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suwandre/depthwatch/api/handlers"
)

func SetupRoutes(app *fiber.App, books *handlers.OrderBookHandler, scores *handlers.ScoreHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	v1.Get("/exchanges", books.ListExchanges)
	v1.Get("/exchanges/:exchange/pairs", books.GetPairs)
	v1.Get("/exchanges/:exchange/orderbook/:symbol", books.GetOrderBook)
	v1.Get("/exchanges/:exchange/orderbooks", books.GetSnapshot)
	v1.Get("/scores/:symbol", scores.GetScores)
}
