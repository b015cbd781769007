package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// maxOccurrenceRange caps the span of one occurrence listing.
const maxOccurrenceRange = 366 * 24 * time.Hour

// ClassHandler serves the public class calendar.
type ClassHandler struct {
	Store store.Reader
	Loc   *time.Location
	now   func() time.Time
}

// NewClassHandler panics on a nil store.
func NewClassHandler(s store.Reader, loc *time.Location) *ClassHandler {
	if s == nil {
		panic("nil store passed to NewClassHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ClassHandler{Store: s, Loc: loc, now: time.Now}
}

// Occurrences handles GET /v1/classes/:id/occurrences?from=&to=. from
// defaults to today and to to 30 days after from.
func (h *ClassHandler) Occurrences(c echo.Context) error {
	cls, err := h.Store.GetClass(c.Request().Context(), c.Param("id"))
	if err != nil {
		if store.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		}
		return writeError(c, err)
	}

	from := schedule.Today(h.now(), h.Loc)
	if s := c.QueryParam("from"); s != "" {
		if from, err = schedule.ParseDate(s); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
		}
	}
	to := from.AddDate(0, 0, 30)
	if s := c.QueryParam("to"); s != "" {
		if to, err = schedule.ParseDate(s); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
		}
	}
	if to.Before(from) || to.Sub(from) > maxOccurrenceRange {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "range must be 0 to 366 days"})
	}

	dates := schedule.FormatDates(schedule.OccurrencesInRange(cls.Schedule, from, to))
	if !cls.IsActive {
		dates = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"classId":   cls.ID,
		"title":     cls.Title,
		"startTime": cls.StartTime,
		"endTime":   cls.EndTime,
		"from":      schedule.FormatDate(from),
		"to":        schedule.FormatDate(to),
		"dates":     dates,
	})
}
