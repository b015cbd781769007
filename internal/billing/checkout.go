package billing

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

// Gateway opens a payment transaction at the provider.
type Gateway interface {
	CreateTransaction(ctx context.Context, req tpay.TransactionRequest) (tpay.Transaction, error)
}

// Checkout creates payment intents and sends them to the gateway.
type Checkout struct {
	store   store.Store
	gateway Gateway
	appURL  string
	loc     *time.Location
	now     func() time.Time
	newID   func() string
}

// NewCheckout wires a Checkout. gateway may be nil, in which case
// StartPayment fails with ErrGatewayDisabled. appURL is the public base URL
// used for the payer and notification callbacks.
func NewCheckout(s store.Store, gateway Gateway, appURL string, loc *time.Location) *Checkout {
	if s == nil {
		panic("nil store passed to NewCheckout")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Checkout{
		store:   s,
		gateway: gateway,
		appURL:  strings.TrimRight(appURL, "/"),
		loc:     loc,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// IntentRequest describes a purchase.
type IntentRequest struct {
	ParentID    string
	PlanID      string
	ChildID     string
	ClassID     string
	Dates       []string
	EnrollNow   bool
	Email       string
	Description string
}

// CreateIntent validates the purchase and stores a new intent in state
// created. One-off plans are priced per requested date.
func (c *Checkout) CreateIntent(ctx context.Context, req IntentRequest) (*model.PaymentIntent, error) {
	req.PlanID = strings.TrimSpace(req.PlanID)
	req.ChildID = strings.TrimSpace(req.ChildID)
	req.ClassID = strings.TrimSpace(req.ClassID)
	req.Email = strings.TrimSpace(req.Email)
	if req.ParentID == "" || req.PlanID == "" {
		return nil, booking.ErrBadRequest
	}
	dates, err := schedule.NormalizeDates(req.Dates)
	if err != nil {
		return nil, &booking.Error{Reason: booking.ReasonInvalidDate, Msg: err.Error()}
	}

	plan, err := c.store.GetPlan(ctx, req.PlanID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}
	if plan.Scope == model.ScopeChild && req.ChildID == "" {
		return nil, ErrChildRequired
	}
	if req.ChildID != "" {
		child, err := c.store.GetChild(ctx, req.ChildID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, booking.ErrChildNotFound
			}
			return nil, err
		}
		if child.ParentID != req.ParentID {
			return nil, booking.ErrForbidden
		}
	}
	if req.ClassID != "" {
		cls, err := c.store.GetClass(ctx, req.ClassID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, booking.ErrClassNotFound
			}
			return nil, err
		}
		if !cls.IsActive {
			return nil, booking.ErrClassInactive
		}
		if err := booking.ValidateDates(cls, dates, c.now(), c.loc); err != nil {
			return nil, err
		}
	} else if len(dates) > 0 {
		return nil, booking.ErrBadRequest
	}

	amount := plan.PriceCents
	if plan.IsOneOff() && len(dates) > 1 {
		amount *= int64(len(dates))
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = plan.Name
		if desc == "" {
			desc = "Plan " + plan.ID
		}
	}

	now := c.now().UTC()
	ymd := schedule.FormatDates(dates)
	intent := &model.PaymentIntent{
		ID:          c.newID(),
		ParentID:    req.ParentID,
		PlanID:      plan.ID,
		AmountCents: amount,
		Currency:    plan.Currency,
		Email:       req.Email,
		Description: desc,
		Provider:    model.ProviderTpay,
		Status:      model.IntentCreated,
		Metadata: model.IntentMetadata{
			ClassID:   req.ClassID,
			ChildID:   req.ChildID,
			EnrollNow: req.EnrollNow || plan.IsOneOff(),
			Dates:     ymd,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(ymd) > 0 {
		intent.Metadata.DateYMD = ymd[0]
	}
	if err := c.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutPaymentIntent(ctx, intent)
	}); err != nil {
		return nil, err
	}
	return intent, nil
}

// StartPayment opens a gateway transaction for the caller's intent, marks
// the intent redirected and returns the URL to send the payer to.
func (c *Checkout) StartPayment(ctx context.Context, parentID, intentID string) (string, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return "", booking.ErrBadRequest
	}
	if c.gateway == nil || c.appURL == "" {
		return "", ErrGatewayDisabled
	}
	intent, err := c.store.GetPaymentIntent(ctx, intentID)
	if err != nil {
		if store.IsNotFound(err) {
			return "", ErrIntentNotFound
		}
		return "", err
	}
	if intent.ParentID != parentID {
		return "", booking.ErrForbidden
	}
	if intent.Finalized() || (intent.Status != model.IntentCreated && intent.Status != model.IntentRedirected) {
		return "", ErrIntentState
	}
	if intent.AmountCents <= 0 {
		return "", ErrInvalidAmount
	}
	if intent.Email == "" {
		return "", ErrEmailRequired
	}

	id := url.QueryEscape(intent.ID)
	tr, err := c.gateway.CreateTransaction(ctx, tpay.TransactionRequest{
		IntentID:        intent.ID,
		AmountCents:     intent.AmountCents,
		Currency:        intent.Currency,
		Description:     intent.Description,
		PayerEmail:      intent.Email,
		SuccessURL:      fmt.Sprintf("%s/dashboard/classes?payment=success&intent=%s", c.appURL, id),
		ErrorURL:        fmt.Sprintf("%s/dashboard/classes?payment=error&intent=%s", c.appURL, id),
		NotificationURL: c.appURL + "/v1/tpay/webhook",
	})
	if err != nil {
		log.Printf("checkout: gateway rejected intent %s: %v", tpay.Mask(intent.ID), err)
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}

	err = c.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		fresh, err := tx.GetPaymentIntent(ctx, intent.ID)
		if err != nil {
			return err
		}
		if fresh.Finalized() || fresh.Status == model.IntentFailed {
			return ErrIntentState
		}
		fresh.Status = model.IntentRedirected
		fresh.Provider = model.ProviderTpay
		fresh.ProviderTransactionID = tr.ID
		fresh.ProviderTitle = tr.Title
		fresh.UpdatedAt = c.now().UTC()
		return tx.PutPaymentIntent(ctx, fresh)
	})
	if err != nil {
		return "", err
	}
	return tr.PaymentURL, nil
}
