// Package handler exposes the booking and payment flows over HTTP.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-class-booking/internal/billing"
	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// errorStatus maps sentinel errors to a status and a client-facing message.
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{booking.ErrBadRequest, http.StatusBadRequest, "invalid request"},
	{booking.ErrForbidden, http.StatusForbidden, "forbidden"},
	{booking.ErrChildNotFound, http.StatusNotFound, "child not found"},
	{booking.ErrClassNotFound, http.StatusNotFound, "class not found"},
	{booking.ErrClassInactive, http.StatusBadRequest, "class not active"},
	{booking.ErrEntitlementGone, http.StatusConflict, "entitlement changed, retry"},
	{billing.ErrIntentNotFound, http.StatusNotFound, "payment intent not found"},
	{billing.ErrPlanNotFound, http.StatusNotFound, "plan not found"},
	{billing.ErrPlanInactive, http.StatusBadRequest, "plan not active"},
	{billing.ErrChildRequired, http.StatusBadRequest, "childId is required for this plan"},
	{billing.ErrIntentState, http.StatusConflict, "payment intent cannot be paid in its current state"},
	{billing.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
	{billing.ErrEmailRequired, http.StatusBadRequest, "email is required"},
	{billing.ErrGatewayDisabled, http.StatusServiceUnavailable, "online payments are not configured"},
	{billing.ErrGateway, http.StatusBadGateway, "payment provider error"},
	{store.ErrConflict, http.StatusConflict, "concurrent update, retry"},
}

// writeError renders err as {"error": ...}. Business rule failures carry
// their reason code and, when relevant, the offending date. Anything
// unrecognized is logged and reported as 500 without internals.
func writeError(c echo.Context, err error) error {
	var be *booking.Error
	if errors.As(err, &be) {
		status := http.StatusPaymentRequired
		if be.Reason == booking.ReasonInvalidDate {
			status = http.StatusBadRequest
		}
		body := echo.Map{"error": string(be.Reason), "message": be.Msg}
		if be.Date != "" {
			body["date"] = be.Date
		}
		return c.JSON(status, body)
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": m.msg})
		}
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
