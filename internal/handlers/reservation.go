package handlers

import (
	"time"

	"coordy/internal/services/reservation"
	"coordy/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type ReservationHandler struct {
	reservationService *reservation.Service
}

func NewReservationHandler(reservationService *reservation.Service) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

type reservationInput struct {
	ServiceID   string    `json:"service_id" validate:"required"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	Points      int64     `json:"points" validate:"required,gt=0"`
	Description string    `json:"description" validate:"max=255"`
}

func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input reservationInput
	if err := utils.ParseBody(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	res, err := h.reservationService.Create(c.UserContext(), reservation.CreateRequest{
		ClientID:    claims.ClientID(),
		ServiceID:   input.ServiceID,
		StartsAt:    input.StartsAt,
		Points:      input.Points,
		Description: input.Description,
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Created(c, fiber.Map{
		"reservation": res,
	})
}

func (h *ReservationHandler) Cancel(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	res, err := h.reservationService.Cancel(c.UserContext(), claims.ClientID(), c.Params("id"))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"reservation": res,
	})
}

func (h *ReservationHandler) Get(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	res, err := h.reservationService.Get(c.UserContext(), claims.ClientID(), c.Params("id"))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"reservation": res,
	})
}

func (h *ReservationHandler) List(c *fiber.Ctx) error {
	claims, err := extractClientClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	list, err := h.reservationService.List(c.UserContext(), claims.ClientID())
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"reservations": list,
	})
}
