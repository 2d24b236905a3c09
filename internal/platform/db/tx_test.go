package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped deadlock", fmt.Errorf("confirm: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("expected unique violation")
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Fatal("did not expect unique violation")
	}
}

type failingBeginner struct {
	calls int
	err   error
}

func (f *failingBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.calls++
	return nil, f.err
}

func TestRunInTxRetriesOnlyRetryableErrors(t *testing.T) {
	permanent := &failingBeginner{err: errors.New("connection refused")}
	err := RunInTx(context.Background(), permanent, time.Second, func(pgx.Tx) error { return nil })
	if err == nil || permanent.calls != 1 {
		t.Fatalf("expected single attempt with error, got calls=%d err=%v", permanent.calls, err)
	}

	retryable := &failingBeginner{err: &pgconn.PgError{Code: "40001"}}
	err = RunInTx(context.Background(), retryable, 200*time.Millisecond, func(pgx.Tx) error { return nil })
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error after giving up, got %v", err)
	}
	if retryable.calls < 2 {
		t.Fatalf("expected retries, got %d attempt(s)", retryable.calls)
	}
}
