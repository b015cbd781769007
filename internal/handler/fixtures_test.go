package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/billing"
	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/middleware"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/store/memory"
	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

const (
	jwtSecret = "handler-test-secret"
	md5Secret = "merchant-code"
)

var cet = time.FixedZone("CET", 3600)

// Tuesdays of the seeded class, far enough ahead to never be in the past.
const (
	tue1 = "2030-01-08"
	tue2 = "2030-01-15"
	tue3 = "2030-01-22"
)

type fakeGateway struct {
	calls int
	err   error
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req tpay.TransactionRequest) (tpay.Transaction, error) {
	g.calls++
	if g.err != nil {
		return tpay.Transaction{}, g.err
	}
	return tpay.Transaction{ID: "01TX-" + req.IntentID, Title: "TR-1", PaymentURL: "https://pay.example/TR-1"}, nil
}

type server struct {
	e       *echo.Echo
	store   *memory.Store
	gateway *fakeGateway
}

// newServer seeds the default plans, kid-1 of parent-1, kid-x of parent-2,
// a Tuesday class "yoga" and entitlement "ent-2030" of parent-1 with 4
// monthly credits, 3 of them used in January 2030.
func newServer(t *testing.T) *server {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, p := range model.DefaultPlans() {
			if err := tx.PutPlan(ctx, &p); err != nil {
				return err
			}
		}
		for _, c := range []model.Child{{ID: "kid-1", ParentID: "parent-1"}, {ID: "kid-x", ParentID: "parent-2"}} {
			if err := tx.PutChild(ctx, &c); err != nil {
				return err
			}
		}
		if err := tx.PutClass(ctx, &model.Class{
			ID: "yoga", Title: "Kids yoga", IsActive: true, StartTime: "17:00", EndTime: "17:45",
			Schedule: model.ScheduleRule{Weekday: 2, Recurrence: model.RecurrenceWeekly, Interval: 1, StartDate: "2026-01-06"},
		}); err != nil {
			return err
		}
		return tx.PutEntitlement(ctx, &model.Entitlement{
			ID: "ent-2030", ParentID: "parent-1", ChildID: "kid-1", PlanID: "class_monthly",
			Type: model.PlanClassMonthly, Status: model.EntitlementActive,
			ValidFrom: time.Date(2030, 1, 1, 0, 0, 0, 0, cet),
			ValidTo:   time.Date(2030, 1, 31, 23, 59, 59, 0, cet),
			Limits:    model.CreditLimits{Period: model.PeriodMonth, Amount: 4},
			Usage:     map[string]int{"2030-01": 3},
		})
	}))

	engine := booking.NewEngine(s, cet)
	gw := &fakeGateway{}
	reservations := NewReservationHandler(booking.NewService(s, engine, nil))
	payments := NewPaymentHandler(billing.NewCheckout(s, gw, "https://app.example", cet))
	webhook := NewWebhookHandler(billing.NewFinalizer(s, engine, nil, 0), md5Secret)
	classes := NewClassHandler(s, cet)
	classes.now = func() time.Time { return time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC) }
	ents := NewEntitlementHandler(s, cet)
	ents.now = func() time.Time { return time.Date(2030, 1, 10, 8, 0, 0, 0, time.UTC) }

	e := echo.New()
	e.GET("/health", Health)
	e.GET("/v1/classes/:id/occurrences", classes.Occurrences)
	e.POST("/v1/tpay/webhook", webhook.Notify)
	e.GET("/v1/tpay/webhook", webhook.Ping)
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleParent))
	g.POST("/reservations", reservations.Create)
	g.POST("/payment-intents", payments.CreateIntent)
	g.POST("/payments/tpay/create", payments.StartTpay)
	g.GET("/entitlements", ents.List)
	return &server{e: e, store: s, gateway: gw}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": model.RoleParent,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func (s *server) do(t *testing.T, method, path, parent string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if parent != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, parent))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
