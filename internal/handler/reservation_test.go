package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/store"
)

func TestCreateReservation(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/v1/reservations", "parent-1", map[string]any{
		"classId": "yoga", "childId": "kid-1", "dates": []string{tue1, tue2},
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	require.Equal(t, "NO_CREDITS", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/v1/reservations", "parent-1", map[string]any{
		"classId": "yoga", "childId": "kid-1", "dates": []string{tue1},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, "ent-2030", body["entitlementId"])
	require.EqualValues(t, 1, body["created"])

	ent, err := s.store.GetEntitlement(context.Background(), "ent-2030")
	require.NoError(t, err)
	require.Equal(t, 4, ent.Usage["2030-01"])

	rec = s.do(t, http.MethodPost, "/v1/reservations", "parent-1", map[string]any{
		"classId": "yoga", "childId": "kid-1", "dates": []string{tue1},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decode(t, rec)
	require.EqualValues(t, 0, body["created"])
	require.Equal(t, true, body["alreadyReserved"])

	// The reserved date costs nothing; the new one needs a credit the bucket lacks.
	rec = s.do(t, http.MethodPost, "/v1/reservations", "parent-1", map[string]any{
		"classId": "yoga", "childId": "kid-1", "dates": []string{tue1, tue2},
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	require.Equal(t, "NO_CREDITS", decode(t, rec)["error"])

	ent, err = s.store.GetEntitlement(context.Background(), "ent-2030")
	require.NoError(t, err)
	require.Equal(t, 4, ent.Usage["2030-01"])
	require.Len(t, s.store.Reservations(), 1)
}

func TestCreateReservationInactiveClass(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.store.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetClass(ctx, "yoga")
		if err != nil {
			return err
		}
		c.IsActive = false
		return tx.PutClass(ctx, c)
	}))

	rec := s.do(t, http.MethodPost, "/v1/reservations", "parent-1", map[string]any{
		"classId": "yoga", "childId": "kid-1", "dates": []string{tue1},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Equal(t, "class not active", decode(t, rec)["error"])
}

func TestCreateReservationErrors(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		body   map[string]any
		status int
		reason string
	}{
		{"no token", "", map[string]any{"classId": "yoga", "childId": "kid-1", "dates": []string{tue1}}, http.StatusUnauthorized, ""},
		{"missing dates", "parent-1", map[string]any{"classId": "yoga", "childId": "kid-1"}, http.StatusBadRequest, ""},
		{"malformed date", "parent-1", map[string]any{"classId": "yoga", "childId": "kid-1", "dates": []string{"2030-13-01"}}, http.StatusBadRequest, "INVALID_DATE"},
		{"not a class day", "parent-1", map[string]any{"classId": "yoga", "childId": "kid-1", "dates": []string{"2030-01-09"}}, http.StatusBadRequest, "INVALID_DATE"},
		{"foreign child", "parent-1", map[string]any{"classId": "yoga", "childId": "kid-x", "dates": []string{tue1}}, http.StatusForbidden, ""},
		{"unknown child", "parent-1", map[string]any{"classId": "yoga", "childId": "nobody", "dates": []string{tue1}}, http.StatusNotFound, ""},
		{"unknown class", "parent-1", map[string]any{"classId": "chess", "childId": "kid-1", "dates": []string{tue1}}, http.StatusNotFound, ""},
		{"no entitlement", "parent-2", map[string]any{"classId": "yoga", "childId": "kid-x", "dates": []string{tue1}}, http.StatusPaymentRequired, "NO_ENTITLEMENT"},
		{"outside window", "parent-1", map[string]any{"classId": "yoga", "childId": "kid-1", "dates": []string{"2030-02-05"}}, http.StatusPaymentRequired, "NO_ENTITLEMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			rec := s.do(t, http.MethodPost, "/v1/reservations", tt.parent, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.reason != "" {
				require.Equal(t, tt.reason, decode(t, rec)["error"])
			}
		})
	}
}
