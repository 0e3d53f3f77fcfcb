package bank

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tallyvault/tallyvault/internal/ledger"
	"github.com/tallyvault/tallyvault/internal/pin"
)

// Handler exposes the business actions over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds the action HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type mintRequest struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type enrollRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type awardRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Memo      string `json:"memo"`
}

type redeemRequest struct {
	AccountID string `json:"account_id"`
	Prize     string `json:"prize"`
	Amount    int64  `json:"amount"`
	PIN       string `json:"pin"`
}

type reverseRequest struct {
	TransactionID string `json:"transaction_id"`
}

type withdrawRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Label     string `json:"label"`
	PIN       string `json:"pin"`
}

type correctionRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Label     string `json:"label"`
}

type stockRequest struct {
	Prize string `json:"prize"`
	Count int    `json:"count"`
}

// Mint funds the vault with the genesis credit.
func (h *Handler) Mint(c *fiber.Ctx) error {
	var req mintRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Mint(c.UserContext(), req.Name, req.Amount)
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Enroll adds an agent account.
func (h *Handler) Enroll(c *fiber.Ctx) error {
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.service.Enroll(c.UserContext(), EnrollInput{Name: req.Name, PIN: req.PIN})
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(account)
}

// Award credits points to an agent.
func (h *Handler) Award(c *fiber.Ctx) error {
	var req awardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Award(c.UserContext(), AwardInput{AccountID: req.AccountID, Amount: req.Amount, Memo: req.Memo})
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Redeem posts a PIN-gated prize redemption.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Redeem(c.UserContext(), RedeemInput{
		AccountID: req.AccountID,
		Prize:     req.Prize,
		Amount:    req.Amount,
		PIN:       req.PIN,
	})
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// ReverseRedemption compensates an active redemption.
func (h *Handler) ReverseRedemption(c *fiber.Ctx) error {
	var req reverseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.ReverseRedemption(c.UserContext(), req.TransactionID)
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Withdraw posts a PIN-gated manual debit.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Label:     req.Label,
		PIN:       req.PIN,
	})
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// ReverseSale nullifies an active earned credit.
func (h *Handler) ReverseSale(c *fiber.Ctx) error {
	var req reverseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.ReverseSale(c.UserContext(), req.TransactionID)
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// CorrectWithdrawal posts a manual correction debit.
func (h *Handler) CorrectWithdrawal(c *fiber.Ctx) error {
	var req correctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.CorrectWithdrawal(c.UserContext(), req.AccountID, req.Amount, req.Label)
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// ResetBalance zeroes an agent's balance.
func (h *Handler) ResetBalance(c *fiber.Ctx) error {
	tx, err := h.service.ResetBalance(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return actionError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// ResetHistory hides an agent's prior history from derived views.
func (h *Handler) ResetHistory(c *fiber.Ctx) error {
	if err := h.service.ResetHistory(c.UserContext(), c.Params("accountId")); err != nil {
		return actionError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ResetMetric restarts one named metric series.
func (h *Handler) ResetMetric(c *fiber.Ctx) error {
	if err := h.service.ResetMetric(c.UserContext(), c.Params("metric")); err != nil {
		return actionError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// SeedStock sets the remaining count for a prize.
func (h *Handler) SeedStock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SeedStock(c.UserContext(), req.Prize, req.Count); err != nil {
		return actionError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func actionError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount), errors.Is(err, ErrUnknownTransaction):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, pin.ErrMismatch), errors.Is(err, pin.ErrNotSet):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrVaultExists), errors.Is(err, ErrAlreadyReversed):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
