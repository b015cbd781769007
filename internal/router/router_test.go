package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/billing"
	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/handler"
	"github.com/iliyamo/kids-class-booking/internal/store/memory"
)

func newEcho(t *testing.T) *echo.Echo {
	t.Helper()
	s := memory.New()
	engine := booking.NewEngine(s, time.UTC)
	h := Handlers{
		Reservations: handler.NewReservationHandler(booking.NewService(s, engine, nil)),
		Payments:     handler.NewPaymentHandler(billing.NewCheckout(s, nil, "", time.UTC)),
		Webhook:      handler.NewWebhookHandler(billing.NewFinalizer(s, engine, nil, 0), "secret"),
		Classes:      handler.NewClassHandler(s, time.UTC),
		Entitlements: handler.NewEntitlementHandler(s, time.UTC),
	}
	e := echo.New()
	opts := Options{JWTSecret: "secret"}
	RegisterRoutes(e, h, opts)
	RegisterParent(e, h, opts)
	return e
}

func TestRoutes(t *testing.T) {
	e := newEcho(t)
	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/v1/tpay/webhook", http.StatusOK},
		{http.MethodPost, "/v1/tpay/webhook", http.StatusOK},
		{http.MethodGet, "/v1/classes/none/occurrences", http.StatusNotFound},
		{http.MethodPost, "/v1/reservations", http.StatusUnauthorized},
		{http.MethodPost, "/v1/payment-intents", http.StatusUnauthorized},
		{http.MethodPost, "/v1/payments/tpay/create", http.StatusUnauthorized},
		{http.MethodGet, "/v1/entitlements", http.StatusUnauthorized},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}
