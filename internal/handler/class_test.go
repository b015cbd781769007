package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOccurrences(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		dates  []any
	}{
		{"explicit range", "/v1/classes/yoga/occurrences?from=2030-01-01&to=2030-01-20", http.StatusOK, []any{"2030-01-01", tue1, tue2}},
		{"mid-week bounds", "/v1/classes/yoga/occurrences?from=2030-01-02&to=2030-01-14", http.StatusOK, []any{tue1}},
		{"default from today", "/v1/classes/yoga/occurrences?to=2030-01-10", http.StatusOK, []any{"2030-01-01", tue1}},
		{"empty range", "/v1/classes/yoga/occurrences?from=2030-01-09&to=2030-01-14", http.StatusOK, []any{}},
		{"reversed", "/v1/classes/yoga/occurrences?from=2030-02-01&to=2030-01-01", http.StatusBadRequest, nil},
		{"too long", "/v1/classes/yoga/occurrences?from=2030-01-01&to=2031-06-01", http.StatusBadRequest, nil},
		{"bad date", "/v1/classes/yoga/occurrences?from=tomorrow", http.StatusBadRequest, nil},
		{"unknown class", "/v1/classes/chess/occurrences", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			rec := s.do(t, http.MethodGet, tt.path, "", nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.dates != nil {
				require.Equal(t, tt.dates, decode(t, rec)["dates"])
			}
		})
	}
}
