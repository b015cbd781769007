package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-class-booking/internal/entitlement"
	"github.com/iliyamo/kids-class-booking/internal/middleware"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// EntitlementHandler shows guardians what they have left to spend.
type EntitlementHandler struct {
	Store store.Reader
	Loc   *time.Location
	now   func() time.Time
}

// NewEntitlementHandler panics on a nil store.
func NewEntitlementHandler(s store.Reader, loc *time.Location) *EntitlementHandler {
	if s == nil {
		panic("nil store passed to NewEntitlementHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EntitlementHandler{Store: s, Loc: loc, now: time.Now}
}

type entitlementView struct {
	model.Entitlement
	CurrentBucket string `json:"currentBucket"`
	Remaining     *int   `json:"remaining"` // nil when unlimited
	Usable        bool   `json:"usableToday"`
}

// List handles GET /v1/entitlements. Only active entitlements are listed
// unless ?status= names another state or "all". Remaining credits refer to
// the usage bucket of today; the listing never writes.
func (h *EntitlementHandler) List(c echo.Context) error {
	parentID := middleware.UserID(c)
	if parentID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	f := store.EntitlementFilter{ParentID: parentID, Status: model.EntitlementActive}
	switch s := c.QueryParam("status"); s {
	case "":
	case "all":
		f.Status = ""
	default:
		f.Status = model.EntitlementStatus(s)
	}
	ents, err := h.Store.ListEntitlements(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].ValidTo.After(ents[j].ValidTo) })

	now := h.now()
	today := schedule.Today(now, h.Loc)
	out := make([]entitlementView, 0, len(ents))
	for _, e := range ents {
		v := entitlementView{
			Entitlement:   e,
			CurrentBucket: schedule.BucketKey(e.Limits.Period, today),
			Usable:        e.Status == model.EntitlementActive && e.Covers(now),
		}
		if !e.Limits.Unlimited {
			left := entitlement.Remaining(e, v.CurrentBucket)
			v.Remaining = &left
		}
		out = append(out, v)
	}
	return c.JSON(http.StatusOK, echo.Map{"entitlements": out})
}
