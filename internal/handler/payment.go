package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-class-booking/internal/billing"
	"github.com/iliyamo/kids-class-booking/internal/middleware"
)

// PaymentHandler creates payment intents and hands them to Tpay.
type PaymentHandler struct {
	Checkout *billing.Checkout
}

// NewPaymentHandler panics on a nil checkout.
func NewPaymentHandler(checkout *billing.Checkout) *PaymentHandler {
	if checkout == nil {
		panic("nil checkout passed to NewPaymentHandler")
	}
	return &PaymentHandler{Checkout: checkout}
}

type createIntentRequest struct {
	PlanID      string   `json:"planId"`
	ChildID     string   `json:"childId"`
	ClassID     string   `json:"classId"`
	Dates       []string `json:"dates"`
	EnrollNow   bool     `json:"enrollNow"`
	Email       string   `json:"email"`
	Description string   `json:"description"`
}

// CreateIntent handles POST /v1/payment-intents and answers 201 with the
// stored intent.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	parentID := middleware.UserID(c)
	if parentID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createIntentRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PlanID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "planId is required"})
	}
	intent, err := h.Checkout.CreateIntent(c.Request().Context(), billing.IntentRequest{
		ParentID:    parentID,
		PlanID:      body.PlanID,
		ChildID:     body.ChildID,
		ClassID:     body.ClassID,
		Dates:       body.Dates,
		EnrollNow:   body.EnrollNow,
		Email:       body.Email,
		Description: body.Description,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, intent)
}

// StartTpay handles POST /v1/payments/tpay/create with {"intentId": ...}
// and returns the URL the payer should be redirected to.
func (h *PaymentHandler) StartTpay(c echo.Context) error {
	parentID := middleware.UserID(c)
	if parentID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		IntentID string `json:"intentId"`
	}
	if err := c.Bind(&body); err != nil || body.IntentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "intentId is required"})
	}
	paymentURL, err := h.Checkout.StartPayment(c.Request().Context(), parentID, body.IntentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"paymentUrl": paymentURL})
}
