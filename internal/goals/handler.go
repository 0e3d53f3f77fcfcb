package goals

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

// Handler exposes savings goal endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a goal HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Target    int64  `json:"target"`
}

// Add creates a savings goal.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	goal, err := h.service.Add(c.UserContext(), AddInput{AccountID: req.AccountID, Name: req.Name, Target: req.Target})
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownAccount) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(goal)
}

// List returns the goals for one account.
func (h *Handler) List(c *fiber.Ctx) error {
	goals := h.service.List(c.Params("accountId"))
	if goals == nil {
		goals = []ledger.Goal{}
	}
	return c.JSON(goals)
}

// Remove deletes a goal.
func (h *Handler) Remove(c *fiber.Ctx) error {
	h.service.Remove(c.UserContext(), c.Params("goalId"))
	return c.SendStatus(http.StatusNoContent)
}
