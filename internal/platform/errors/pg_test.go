package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code string) *pgconn.PgError { return &pgconn.PgError{Code: code} }

func TestExtractPgErrorThroughWraps(t *testing.T) {
	cause := pgErr(pgErrUniqueViolation)
	err := Wrap(fmt.Errorf("exec: %w", cause), ErrorCodeDB, "upsert users")
	got, ok := ExtractPgError(err)
	if !ok || got.Code != pgErrUniqueViolation {
		t.Fatalf("ExtractPgError = %v %v", got, ok)
	}
	if !IsDuplicateKey(err) {
		t.Fatal("IsDuplicateKey should see 23505 through wraps")
	}
}

func TestDBErrorCodeMapping(t *testing.T) {
	cases := []struct {
		sqlstate string
		want     ErrorCode
	}{
		{pgErrUniqueViolation, ErrorCodeDuplicateKey},
		{pgErrForeignKeyViolation, ErrorCodeInvalidArgument},
		{pgErrNotNullViolation, ErrorCodeValidation},
		{pgErrCheckViolation, ErrorCodeValidation},
		{pgErrInvalidTextRepresentation, ErrorCodeInvalidArgument},
		{pgErrDeadlockDetected, ErrorCodeDB},
		{pgErrCannotConnectNow, ErrorCodeUnavailable},
		{"99999", ErrorCodeDB},
	}
	for _, c := range cases {
		code, ok := DBErrorCode(pgErr(c.sqlstate))
		if !ok || code != c.want {
			t.Fatalf("DBErrorCode(%s) = %v %v, want %v", c.sqlstate, code, ok, c.want)
		}
	}
	if _, ok := DBErrorCode(stderrs.New("not pg")); ok {
		t.Fatal("non-pg error should report !ok")
	}
}

func TestFromPostgres(t *testing.T) {
	if FromPostgres(nil, "x") != nil {
		t.Fatal("nil in, nil out")
	}
	err := FromPostgres(pgErr(pgErrUniqueViolation), "insert org")
	if CodeOf(err) != ErrorCodeDuplicateKey {
		t.Fatalf("code = %v", CodeOf(err))
	}
	err = FromPostgresf(stderrs.New("weird"), "batch %d", 3)
	if CodeOf(err) != ErrorCodeDB {
		t.Fatalf("fallback code = %v", CodeOf(err))
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if IsRetryable(context.Canceled) || IsRetryable(context.DeadlineExceeded) {
		t.Fatal("local cancellation is not retryable")
	}
	if !IsRetryable(pgErr(pgErrSerializationFailure)) {
		t.Fatal("40001 is retryable")
	}
	if !IsRetryable(pgErr(pgErrDeadlockDetected)) {
		t.Fatal("40P01 is retryable")
	}
	if IsRetryable(pgErr(pgErrUniqueViolation)) {
		t.Fatal("23505 is not retryable")
	}
	if !IsRetryable(stderrs.New("FATAL: terminating connection due to administrator command")) {
		t.Fatal("admin shutdown text is retryable")
	}
	if !IsRetryable(fmt.Errorf("tx: %w", stderrs.New("commit unexpectedly resulted in rollback"))) {
		t.Fatal("commit rollback text is retryable through wraps")
	}
	if IsRetryable(stderrs.New("syntax error at or near")) {
		t.Fatal("plain errors are not retryable")
	}
}
