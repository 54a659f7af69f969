package handlers

import (
	"coordy/internal/services/approval"
	"coordy/internal/services/wallet"
	"coordy/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	approvalService *approval.Service
	walletService   wallet.Service
}

func NewAdminHandler(approvalService *approval.Service, walletService wallet.Service) *AdminHandler {
	return &AdminHandler{
		approvalService: approvalService,
		walletService:   walletService,
	}
}

type approveInput struct {
	ClientID string `json:"client_id"`
	Amount   int64  `json:"amount" validate:"gte=0"`
}

func (h *AdminHandler) ListPendingCharges(c *fiber.Ctx) error {
	txs, err := h.approvalService.ListPendingBankCharges(c.UserContext())
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *AdminHandler) ApproveCharge(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input approveInput
	if err := utils.ParseBody(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	result, err := h.approvalService.ApproveCharge(c.UserContext(), approval.ApproveRequest{
		TransactionID: c.Params("id"),
		ClientID:      input.ClientID,
		Amount:        input.Amount,
		ReviewedBy:    claims.ClientID(),
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, result)
}

func (h *AdminHandler) RejectCharge(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	tx, err := h.approvalService.RejectCharge(c.UserContext(), c.Params("id"), claims.ClientID())
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"transaction": tx,
	})
}

func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	report, err := h.walletService.Reconcile(c.UserContext(), c.Params("clientId"))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, report)
}

func (h *AdminHandler) ListWallets(c *fiber.Ctx) error {
	pagination := utils.GetPagination(c, 1, wallet.DefaultHistoryLimit)
	wallets, total, err := h.walletService.ListWallets(c.UserContext(), pagination.Limit, pagination.Offset)
	if err != nil {
		return utils.Error(c, err)
	}

	pagination.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(wallets, pagination))
}
