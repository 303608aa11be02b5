package errors

import (
	stderrs "errors"
	"fmt"
	"testing"
)

func TestNewAndCode(t *testing.T) {
	err := New(ErrorCodeNotFound, "missing repo")
	if err.Error() != "missing repo" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if CodeOf(err) != ErrorCodeNotFound {
		t.Fatalf("CodeOf = %v", CodeOf(err))
	}
	if !IsCode(err, ErrorCodeNotFound) {
		t.Fatal("IsCode should match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrs.New("boom")
	err := Wrapf(cause, ErrorCodeDB, "upsert %s", "repositories")
	if !stderrs.Is(err, cause) {
		t.Fatal("wrapped cause lost")
	}
	if err.Error() != "upsert repositories: boom" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Root(err) != cause {
		t.Fatal("Root should reach the cause")
	}
}

func TestAsThroughFmtWrapping(t *testing.T) {
	inner := New(ErrorCodeTooManyRequests, "rate limited")
	outer := fmt.Errorf("page 3: %w", inner)
	e, ok := As(outer)
	if !ok || e.Code() != ErrorCodeTooManyRequests {
		t.Fatalf("As through fmt wrap failed: %v %v", e, ok)
	}
	if CodeOf(outer) != ErrorCodeTooManyRequests {
		t.Fatalf("CodeOf through wrap = %v", CodeOf(outer))
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if CodeOf(stderrs.New("plain")) != ErrorCodeUnknown {
		t.Fatal("foreign errors default to Unknown")
	}
}

func TestWithOpCopyOnWrite(t *testing.T) {
	base := New(ErrorCodeInvalidArgument, "bad window")
	tagged := WithOp(base, "collect.split")
	e1, _ := As(base)
	e2, _ := As(tagged)
	if e1.Op() != "" {
		t.Fatal("original mutated")
	}
	if e2.Op() != "collect.split" {
		t.Fatalf("op = %q", e2.Op())
	}

	foreign := stderrs.New("x")
	if WithOp(foreign, "op") != foreign {
		t.Fatal("foreign error should pass through unchanged")
	}
}

func TestWrapIf(t *testing.T) {
	if WrapIf(nil, ErrorCodeDB, "nope") != nil {
		t.Fatal("WrapIf(nil) must be nil")
	}
	if CodeOf(WrapIf(stderrs.New("x"), ErrorCodeDB, "db")) != ErrorCodeDB {
		t.Fatal("WrapIf should wrap non-nil")
	}
}

func TestSugarConstructors(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
	}{
		{NotFoundf("r %d", 1), ErrorCodeNotFound},
		{InvalidArgf("bad"), ErrorCodeInvalidArgument},
		{DBf("db"), ErrorCodeDB},
		{Unavailablef("down"), ErrorCodeUnavailable},
		{RateLimitedf("slow down"), ErrorCodeTooManyRequests},
		{Internalf("odd"), ErrorCodeUnknown},
	}
	for _, c := range cases {
		if CodeOf(c.err) != c.code {
			t.Fatalf("%v: code = %v, want %v", c.err, CodeOf(c.err), c.code)
		}
	}
}
