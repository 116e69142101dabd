package database

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool that satisfies DBTX and is closed when
// the test ends. Assert ExpectationsWereMet in the test body.
func NewMockPool(tb testing.TB) pgxmock.PgxPoolIface {
	tb.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		tb.Fatalf("create pgxmock pool: %v", err)
	}
	tb.Cleanup(mock.Close)
	return mock
}
