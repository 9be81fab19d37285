package server

import (
	"context"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxCycles = 500

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/health", s.healthHandler)
	s.App.Get("/status", s.statusHandler)
	s.App.Get("/orders", s.ordersHandler)
	s.App.Get("/cycles", s.cyclesHandler)
	s.App.Get("/cycles/last", s.lastCycleHandler)

	if s.gatherer != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.websocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{"status": "up"}
	if s.db != nil {
		health["journal"] = s.db.Health()
	}
	return c.JSON(health)
}

func (s *FiberServer) statusHandler(c *fiber.Ctx) error {
	snapshot := s.view.Load()
	return c.JSON(fiber.Map{
		"pair":         snapshot.Pair,
		"source":       snapshot.Source,
		"status":       snapshot.Status,
		"cycles":       snapshot.Cycles,
		"skippedTicks": snapshot.SkippedTicks,
		"lastError":    snapshot.LastError,
		"updatedAt":    snapshot.UpdatedAt,
	})
}

func (s *FiberServer) ordersHandler(c *fiber.Ctx) error {
	orders := s.view.Load().Orders
	if orders == nil {
		return c.JSON([]any{})
	}
	return c.JSON(orders)
}

func (s *FiberServer) lastCycleHandler(c *fiber.Ctx) error {
	report := s.view.Load().LastReport
	if report == nil {
		return fiber.NewError(fiber.StatusNotFound, "no cycle has completed yet")
	}
	return c.JSON(report)
}

func (s *FiberServer) cyclesHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "journal is disabled")
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxCycles)
	}

	reports, err := s.db.RecentCycles(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(reports)
}

// websocketHandler streams every cycle report to the client until either side closes.
func (s *FiberServer) websocketHandler(con *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := s.hub.subscribe()
	defer s.hub.unsubscribe(messages)

	go func() {
		for {
			if _, _, err := con.ReadMessage(); err != nil {
				cancel()
				s.hub.logger.Debug("Receiver closing: " + err.Error())
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-messages:
			if err := con.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.hub.logger.Debug("Could not write to socket: " + err.Error())
				return
			}
		}
	}
}
