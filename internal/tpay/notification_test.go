package tpay

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func signedForm(secret string) url.Values {
	f := url.Values{}
	f.Set("id", "12345")
	f.Set("tr_id", "TR-ABC-1")
	f.Set("tr_amount", "40.00")
	f.Set("tr_crc", "intent-123")
	f.Set("tr_status", "TRUE")
	f.Set("md5sum", Digest("12345", "TR-ABC-1", "40.00", "intent-123", secret))
	return f
}

func TestNotificationVerify(t *testing.T) {
	n, err := ParseNotification(signedForm("s3cret"))
	require.NoError(t, err)
	require.True(t, n.Paid())
	require.Equal(t, "intent-123", n.CRC)
	require.NoError(t, n.Verify("s3cret"))
	require.ErrorIs(t, n.Verify("other"), ErrBadDigest)

	cents, err := n.AmountCents()
	require.NoError(t, err)
	require.EqualValues(t, 4000, cents)
}

func TestNotificationTamperedAmount(t *testing.T) {
	f := signedForm("s3cret")
	f.Set("tr_amount", "0.01")
	n, err := ParseNotification(f)
	require.NoError(t, err)
	require.ErrorIs(t, n.Verify("s3cret"), ErrBadDigest)
}

func TestParseNotificationIncomplete(t *testing.T) {
	f := signedForm("s3cret")
	f.Del("tr_crc")
	_, err := ParseNotification(f)
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestDigestKnownValue(t *testing.T) {
	// md5("abc")
	require.Equal(t, "900150983cd24fb0d6963f7d28e17f72", Digest("a", "b", "", "c", ""))
}

func TestMask(t *testing.T) {
	require.Equal(t, "EMPTY", Mask(""))
	require.Equal(t, "s***", Mask("short"))
	require.Equal(t, "inte***-123", Mask("intent-123"))
}
