package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/middleware"
)

// ReservationHandler books class dates paid with existing credits.
type ReservationHandler struct {
	Service *booking.Service
}

// NewReservationHandler panics on a nil service.
func NewReservationHandler(svc *booking.Service) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Service: svc}
}

type createReservationRequest struct {
	ClassID string   `json:"classId"`
	ChildID string   `json:"childId"`
	Dates   []string `json:"dates"`
}

// Create handles POST /v1/reservations. Dates already reserved for the
// child cost nothing, so a retried request answers 201 with created=0 and
// alreadyReserved=true.
func (h *ReservationHandler) Create(c echo.Context) error {
	parentID := middleware.UserID(c)
	if parentID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ClassID == "" || body.ChildID == "" || len(body.Dates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "classId, childId and dates are required"})
	}

	res, err := h.Service.Book(c.Request().Context(), booking.BookRequest{
		ParentID: parentID,
		ChildID:  body.ChildID,
		ClassID:  body.ClassID,
		Dates:    body.Dates,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"ok":              true,
		"entitlementId":   res.EntitlementID,
		"created":         res.Created,
		"alreadyReserved": res.AlreadyReserved,
		"dates":           res.Dates,
	})
}
