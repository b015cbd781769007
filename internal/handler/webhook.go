package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-class-booking/internal/billing"
	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

// PaymentFinalizer is the part of billing.Finalizer the webhook drives.
type PaymentFinalizer interface {
	FinalizePaid(ctx context.Context, n billing.PaidNotice) (billing.Result, error)
	MarkFailed(ctx context.Context, intentID, trID string) (billing.Result, error)
}

// WebhookHandler receives Tpay transaction notifications.
type WebhookHandler struct {
	Finalizer PaymentFinalizer
	Secret    string // merchant security code used in the md5sum
}

// NewWebhookHandler panics on a nil finalizer. An empty secret makes every
// notification fail verification.
func NewWebhookHandler(f PaymentFinalizer, secret string) *WebhookHandler {
	if f == nil {
		panic("nil finalizer passed to NewWebhookHandler")
	}
	return &WebhookHandler{Finalizer: f, Secret: secret}
}

// ack is the only body Tpay accepts as delivered. Anything else makes it
// redeliver, so every outcome including rejections answers with it.
func ack(c echo.Context) error {
	return c.String(http.StatusOK, "TRUE")
}

// Notify handles POST /v1/tpay/webhook. The digest is verified before any
// field is trusted. Processing runs detached from the request context so a
// dropped connection cannot abort a finalization midway.
func (h *WebhookHandler) Notify(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		log.Printf("tpay-webhook: unreadable form: %v", err)
		return ack(c)
	}
	n, err := tpay.ParseNotification(form)
	log.Printf("tpay-webhook: in merchant=%s tr=%s intent=%s status=%s amount=%s",
		tpay.Mask(n.MerchantID), tpay.Mask(n.TrID), tpay.Mask(n.CRC), n.Status, n.Amount)
	if err != nil {
		log.Printf("tpay-webhook: %v", err)
		return ack(c)
	}
	if h.Secret == "" {
		log.Printf("tpay-webhook: TPAY_MD5_SECRET not set, notification for %s ignored", tpay.Mask(n.CRC))
		return ack(c)
	}
	if err := n.Verify(h.Secret); err != nil {
		log.Printf("tpay-webhook: md5 mismatch for %s (got %s)", tpay.Mask(n.CRC), tpay.Mask(n.MD5Sum))
		return ack(c)
	}

	ctx := context.WithoutCancel(c.Request().Context())
	if !n.Paid() {
		res, err := h.Finalizer.MarkFailed(ctx, n.CRC, n.TrID)
		if err != nil {
			log.Printf("tpay-webhook: mark failed %s: %v", tpay.Mask(n.CRC), err)
			return ack(c)
		}
		log.Printf("tpay-webhook: intent %s %s", tpay.Mask(n.CRC), res.Outcome)
		return ack(c)
	}

	amount, err := n.AmountCents()
	if err != nil {
		log.Printf("tpay-webhook: bad tr_amount %q for %s", n.Amount, tpay.Mask(n.CRC))
		return ack(c)
	}
	res, err := h.Finalizer.FinalizePaid(ctx, billing.PaidNotice{
		IntentID:              n.CRC,
		ProviderTransactionID: n.TrID,
		AmountCents:           amount,
	})
	switch {
	case err != nil && billing.IsBusinessError(err):
		log.Printf("tpay-webhook: intent %s rejected: %v", tpay.Mask(n.CRC), err)
	case err != nil:
		log.Printf("tpay-webhook: finalize %s failed: %v", tpay.Mask(n.CRC), err)
	default:
		log.Printf("tpay-webhook: intent %s %s entitlement=%s reserved=%d",
			tpay.Mask(n.CRC), res.Outcome, tpay.Mask(res.EntitlementID), len(res.ReservedDates))
	}
	return ack(c)
}

// Ping handles GET /v1/tpay/webhook for reachability checks.
func (h *WebhookHandler) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
