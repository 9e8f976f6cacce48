package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := []struct {
		code    Code
		status  int
		retry   bool
		expose  bool
		details bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true, true},
		{CodeNotFound, http.StatusNotFound, false, true, false},
		{CodeInsufficientStock, http.StatusConflict, false, true, true},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, false, true, true},
		{CodeInternal, http.StatusInternalServerError, true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, true, false, true},
		{CodeRateLimit, http.StatusTooManyRequests, true, true, false},
		{"NOT_A_CODE", http.StatusInternalServerError, true, false, false},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		assert.Equal(t, tc.status, meta.HTTPStatus, tc.code)
		assert.Equal(t, tc.retry, meta.Retryable, tc.code)
		assert.Equal(t, tc.expose, meta.ExposeMessage, tc.code)
		assert.Equal(t, tc.details, meta.DetailsAllowed, tc.code)
		assert.NotEmpty(t, meta.PublicMessage, tc.code)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "lock parts")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: lock parts: connection reset", err.Error())
	assert.Equal(t, "NOT_FOUND: set missing", New(CodeNotFound, "set missing").Error())
}

func TestIsCodeAndRetryable(t *testing.T) {
	wrapped := fmt.Errorf("update status: %w", InvalidTransition("cancelled", "shipped"))

	assert.True(t, IsCode(wrapped, CodeInvalidTransition))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, Retryable(wrapped))
	assert.True(t, Retryable(stdErrors.New("plain")))
	assert.False(t, Retryable(nil))
	assert.Nil(t, As(nil))
}

func TestInsufficientStockClampsAvailable(t *testing.T) {
	details, ok := InsufficientStock(-3, 1).Details().(InsufficientStockDetails)
	require.True(t, ok)
	assert.Equal(t, InsufficientStockDetails{Available: 0, Requested: 1}, details)
	assert.Equal(t, "only 5 available, 6 requested", InsufficientStock(5, 6).Message())
}

func TestLogFieldsIncludesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key", TableName: "orders"}
	fields := LogFields(Wrap(CodeConflict, pgErr, "insert order"))

	assert.Equal(t, "CONFLICT", fields["error_code"])
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "orders_order_number_key", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_detail")
	assert.Len(t, fields["error_chain"], 2)

	pqFields := LogFields(fmt.Errorf("exec: %w", &pq.Error{Code: "40P01", Table: "parts"}))
	assert.Equal(t, "40P01", pqFields["pg_code"])
	assert.NotContains(t, pqFields, "error_code")
}

func TestLogFieldsNil(t *testing.T) {
	assert.Nil(t, LogFields(nil))
}
