package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeBool(t *testing.T) {
	for _, s := range []string{"yes", " YES ", "예", "네", "да", "1", "true", "on"} {
		if !NormalizeBool(s) {
			t.Errorf("expected %q to be true", s)
		}
	}
	for _, s := range []string{"", "no", "아니요", "0", "maybe"} {
		if NormalizeBool(s) {
			t.Errorf("expected %q to be false", s)
		}
	}
}

func TestHMAC(t *testing.T) {
	sig := HMACSHA256Hex("k", "body")
	if len(sig) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(sig))
	}
	if !EqualHex(sig, HMACSHA256Hex("k", "body")) {
		t.Fatal("expected equal signatures")
	}
	if EqualHex(sig, HMACSHA256Hex("k", "other")) {
		t.Fatal("expected different signatures")
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, 2*time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got %v after %d", err, calls)
	}

	calls = 0
	boom := errors.New("boom")
	err = Retry(context.Background(), 2, time.Millisecond, time.Millisecond, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("expected last error after 2 calls, got %v after %d", err, calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 5, time.Hour, time.Hour, func() error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancelled, got %v", err)
	}
}
