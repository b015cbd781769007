package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/store/storetest"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadlock", &driver.MySQLError{Number: 1213}, true},
		{"lock wait timeout", &driver.MySQLError{Number: 1205}, true},
		{"wrapped deadlock", fmt.Errorf("put: %w", &driver.MySQLError{Number: 1213}), true},
		{"duplicate key", &driver.MySQLError{Number: 1062}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, retryable(tc.err))
		})
	}
}

func TestJSONValue(t *testing.T) {
	v, err := jsonValue[map[string]int]{V: map[string]int{"2026-02": 3}}.Value()
	require.NoError(t, err)
	require.Equal(t, `{"2026-02":3}`, v)

	var usage jsonValue[map[string]int]
	require.NoError(t, usage.Scan([]byte(`{"2026-W07":1}`)))
	require.Equal(t, map[string]int{"2026-W07": 1}, usage.V)

	var meta jsonValue[model.IntentMetadata]
	require.NoError(t, meta.Scan(`{"classId":"yoga","dates":["2026-03-10"]}`))
	require.Equal(t, "yoga", meta.V.ClassID)
	require.Equal(t, []string{"2026-03-10"}, meta.V.Dates)

	var empty jsonValue[[]string]
	require.NoError(t, empty.Scan(nil))
	require.Nil(t, empty.V)
	require.Error(t, empty.Scan(42))
}

// TestConformance runs against a real server when MYSQL_TEST_DSN is set,
// e.g. root:root@tcp(localhost:3306)/classbook_test?parseTime=true&loc=UTC.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))
	storetest.Run(t, func(*testing.T) store.Store { return s })
}
