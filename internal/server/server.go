package server

import (
	"market-maker-simulator/internal/bot"
	"market-maker-simulator/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

type FiberServer struct {
	*fiber.App

	view     *bot.View
	db       database.Service
	hub      *Hub
	gatherer prometheus.Gatherer
}

// New builds the read-only status server. db and gatherer may be nil, which disables
// /cycles and /metrics.
func New(view *bot.View, db database.Service, hub *Hub, gatherer prometheus.Gatherer) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "market-maker-simulator",
			AppName:               "market-maker-simulator",
			DisableStartupMessage: true,
		}),

		view:     view,
		db:       db,
		hub:      hub,
		gatherer: gatherer,
	}

	return server
}
