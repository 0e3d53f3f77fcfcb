package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tallyvault/tallyvault/internal/bank"
)

// RegisterBankRoutes wires the business-action endpoints.
func RegisterBankRoutes(r fiber.Router, h *bank.Handler) {
	r.Post("/mint", h.Mint)
	r.Post("/agents", h.Enroll)
	r.Post("/awards", h.Award)
	r.Post("/redemptions", h.Redeem)
	r.Post("/redemptions/reverse", h.ReverseRedemption)
	r.Post("/withdrawals", h.Withdraw)
	r.Post("/sales/reverse", h.ReverseSale)
	r.Post("/corrections", h.CorrectWithdrawal)
	r.Post("/accounts/:accountId/reset-balance", h.ResetBalance)
	r.Post("/accounts/:accountId/reset-history", h.ResetHistory)
	r.Post("/metrics/:metric/reset", h.ResetMetric)
	r.Put("/stock", h.SeedStock)
}
