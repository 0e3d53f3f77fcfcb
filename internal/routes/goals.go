package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tallyvault/tallyvault/internal/goals"
)

// RegisterGoalRoutes wires the savings goal endpoints.
func RegisterGoalRoutes(r fiber.Router, h *goals.Handler) {
	r.Post("/goals", h.Add)
	r.Get("/accounts/:accountId/goals", h.List)
	r.Delete("/goals/:goalId", h.Remove)
}
