package handlers

import (
	"strconv"

	"coordy/internal/models"
	"coordy/internal/services/expiration"
	"coordy/internal/services/wallet"
	"coordy/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type PointsHandler struct {
	walletService wallet.Service
	expiry        *expiration.Processor
}

func NewPointsHandler(walletService wallet.Service, expiry *expiration.Processor) *PointsHandler {
	return &PointsHandler{
		walletService: walletService,
		expiry:        expiry,
	}
}

// extractClientClaims is a helper function to reduce duplication
func extractClientClaims(c *fiber.Ctx) (*models.ClientClaims, error) {
	claims, err := utils.GetClientClaims(c)
	if err != nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

type chargeInput struct {
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Method          string `json:"method" validate:"required"`
	PaymentMethodID string `json:"payment_method_id"`
	ExpirationDays  *int   `json:"expiration_days" validate:"omitempty,gte=0"`
	Description     string `json:"description" validate:"max=255"`
}

type useInput struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

func (h *PointsHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.GetOrCreateWallet(c.UserContext(), claims.ClientID())
	if err != nil {
		return utils.Error(c, err)
	}

	return utils.Success(c, fiber.Map{
		"wallet": w,
	})
}

func (h *PointsHandler) Charge(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input chargeInput
	if err := utils.ParseBody(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	result, err := h.walletService.Charge(c.UserContext(), wallet.ChargeRequest{
		ClientID:        claims.ClientID(),
		Amount:          input.Amount,
		Method:          models.ChargeMethod(input.Method),
		ExpirationDays:  input.ExpirationDays,
		PaymentMethodID: input.PaymentMethodID,
		Description:     input.Description,
	})
	if err != nil {
		return utils.Error(c, err)
	}

	// Bank transfers wait for an admin, so nothing is credited yet.
	if result.Transaction.Status == models.TransactionStatusPending {
		return utils.Respond(c, fiber.StatusAccepted, result)
	}
	return utils.Created(c, result)
}

func (h *PointsHandler) Use(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input useInput
	if err := utils.ParseBody(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	result, err := h.walletService.Use(c.UserContext(), claims.ClientID(), input.Amount, input.Description)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, result)
}

func (h *PointsHandler) GetTransactions(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	pagination := utils.GetPagination(c, 1, wallet.DefaultHistoryLimit)
	page, err := h.walletService.GetTransactionHistoryPage(c.UserContext(), claims.ClientID(), pagination.Limit, pagination.Offset)
	if err != nil {
		return utils.Error(c, err)
	}

	pagination.SetTotal(page.Total)
	return utils.Success(c, utils.NewPaginatedResponse(page.Transactions, pagination))
}

func (h *PointsHandler) GetExpiring(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			return utils.BadRequest(c, "days must be a non-negative integer")
		}
	}

	txs, err := h.expiry.GetExpiringPoints(c.UserContext(), claims.ClientID(), days)
	if err != nil {
		return utils.Error(c, err)
	}

	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return utils.Success(c, fiber.Map{
		"transactions": txs,
		"total_points": total,
	})
}

func (h *PointsHandler) ProcessExpired(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	result, err := h.expiry.ProcessExpiredPoints(c.UserContext(), claims.ClientID())
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, result)
}
