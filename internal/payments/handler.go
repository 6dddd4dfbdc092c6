package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/auth"
	"github.com/securebank/securebank/internal/httperr"
	"github.com/securebank/securebank/internal/ledger"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/validation"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
	metrics *metrics.Metrics
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

type transferRequest struct {
	RecipientEmail string          `json:"recipientEmail"`
	Amount         decimal.Decimal `json:"amount"`
}

type partyView struct {
	Email string `json:"email"`
}

type transactionView struct {
	ID                string    `json:"id"`
	TransferID        string    `json:"transferId"`
	Type              string    `json:"type"`
	Amount            string    `json:"amount"`
	UserID            string    `json:"userId"`
	SenderID          string    `json:"senderId"`
	RecipientID       string    `json:"recipientId"`
	Sender            partyView `json:"sender"`
	Recipient         partyView `json:"recipient"`
	CounterpartyEmail string    `json:"counterpartyEmail"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Transfer moves money from the signed-in account to the account registered under
// recipientEmail.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		h.metrics.ObserveTransfer(metrics.OutcomeInvalidInput)
		return httperr.BadRequest("malformed request body")
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:       session.AccountID,
		RecipientEmail: req.RecipientEmail,
		Amount:         req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			h.metrics.ObserveTransfer(metrics.OutcomeInvalidInput)
			var fields validation.Errors
			if errors.As(err, &fields) {
				return httperr.Invalid(fields)
			}
			return httperr.BadRequest(err.Error())
		case errors.Is(err, ErrRecipientNotFound):
			h.metrics.ObserveTransfer(metrics.OutcomeRecipientNotFound)
			return httperr.New(http.StatusNotFound, httperr.CodeNotFound, "Recipient not found")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			h.metrics.ObserveTransfer(metrics.OutcomeInsufficientFunds)
			return httperr.New(http.StatusBadRequest, httperr.CodeInsufficientFunds, "Insufficient funds")
		default:
			h.metrics.ObserveTransfer(metrics.OutcomeError)
			return err
		}
	}
	h.metrics.ObserveTransfer(metrics.OutcomeSuccess)

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactionId": res.TransferID,
		"balance":       res.Balance.StringFixed(2),
		"completedAt":   res.CompletedAt,
	})
}

// Transactions lists the newest transactions of the signed-in account.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	activity, err := h.service.Recent(c.UserContext(), session.AccountID, RecentLimit)
	if err != nil {
		return err
	}
	out := make([]transactionView, 0, len(activity))
	for _, a := range activity {
		out = append(out, transactionView{
			ID:                a.ID,
			TransferID:        a.TransferID,
			Type:              a.Kind,
			Amount:            a.Amount.StringFixed(2),
			UserID:            session.AccountID,
			SenderID:          a.SenderID,
			RecipientID:       a.RecipientID,
			Sender:            partyView{Email: a.SenderEmail},
			Recipient:         partyView{Email: a.RecipientEmail},
			CounterpartyEmail: a.CounterpartyEmail,
			CreatedAt:         a.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns the signed-in account's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	balance, err := h.service.Balance(c.UserContext(), session.AccountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balance": balance.StringFixed(2)})
}

// Profile returns id, name, email and balance of the signed-in account.
func (h *Handler) Profile(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	profile, err := h.service.Profile(c.UserContext(), session.AccountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":      profile.ID,
		"name":    profile.Name,
		"email":   profile.Email,
		"balance": profile.Balance.StringFixed(2),
	})
}
