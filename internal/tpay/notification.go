package tpay

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBadDigest is returned when the md5sum of a notification does not match.
var ErrBadDigest = errors.New("tpay: md5 mismatch")

// ErrIncomplete is returned for notifications missing id, tr_id or tr_crc.
var ErrIncomplete = errors.New("tpay: notification missing required fields")

// Notification is the form Tpay posts when a transaction changes state.
// CRC carries the payment intent id.
type Notification struct {
	MerchantID string
	TrID       string
	Amount     string
	CRC        string
	Status     string
	MD5Sum     string
}

// ParseNotification reads the form fields and checks the required ones.
func ParseNotification(form url.Values) (Notification, error) {
	n := Notification{
		MerchantID: strings.TrimSpace(form.Get("id")),
		TrID:       strings.TrimSpace(form.Get("tr_id")),
		Amount:     strings.TrimSpace(form.Get("tr_amount")),
		CRC:        strings.TrimSpace(form.Get("tr_crc")),
		Status:     strings.TrimSpace(form.Get("tr_status")),
		MD5Sum:     strings.TrimSpace(form.Get("md5sum")),
	}
	if n.MerchantID == "" || n.TrID == "" || n.CRC == "" {
		return n, ErrIncomplete
	}
	return n, nil
}

// Paid reports whether Tpay confirmed the payment.
func (n Notification) Paid() bool { return strings.EqualFold(n.Status, "TRUE") }

// Digest computes md5(id + tr_id + tr_amount + tr_crc + secret) in hex.
func Digest(merchantID, trID, amount, crc, secret string) string {
	sum := md5.Sum([]byte(merchantID + trID + amount + crc + secret))
	return hex.EncodeToString(sum[:])
}

// Verify checks the notification digest against secret.
func (n Notification) Verify(secret string) error {
	want := Digest(n.MerchantID, n.TrID, n.Amount, n.CRC, secret)
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.MD5Sum))) != 1 {
		return ErrBadDigest
	}
	return nil
}

// AmountCents parses tr_amount into cents.
func (n Notification) AmountCents() (int64, error) {
	d, err := decimal.NewFromString(n.Amount)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// Mask keeps the first and last four characters of an identifier for logs.
func Mask(s string) string {
	const left, right = 4, 4
	if s == "" {
		return "EMPTY"
	}
	if len(s) <= left+right {
		return s[:1] + "***"
	}
	return s[:left] + "***" + s[len(s)-right:]
}
