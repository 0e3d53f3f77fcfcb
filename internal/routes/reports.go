package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tallyvault/tallyvault/internal/reports"
)

// RegisterReportRoutes wires the derived read-only views.
func RegisterReportRoutes(r fiber.Router, h *reports.Handler) {
	r.Get("/accounts", h.Accounts)
	r.Get("/accounts/:accountId/balance", h.Balance)
	r.Get("/accounts/:accountId/history", h.History)
	r.Get("/accounts/:accountId/series", h.Series)
	r.Get("/leaderboard", h.Leaderboard)
	r.Get("/notifications", h.Notifications)
	r.Get("/stock", h.Stock)
}
