package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeDuplicateRegistration, "user %s is already registered", "u1")
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatal("expected coded error to match sentinel")
	}
	if errors.Is(err, ErrEventNotFound) {
		t.Fatal("expected different code not to match")
	}

	wrapped := fmt.Errorf("register: %w", err)
	if !errors.Is(wrapped, ErrDuplicateRegistration) {
		t.Fatal("expected wrapped error to match sentinel")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", ErrEventNotFound, KindValidation},
		{"store", Store("list events", errors.New("disk full")), KindStore},
		{"external", New(CodeWeatherUnavailable, "kma down"), KindExternal},
		{"uncoded", errors.New("boom"), KindStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Store("create participation", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if CodeOf(err) != CodeStoreFailure {
		t.Fatalf("expected store code, got %s", CodeOf(err))
	}
	if got := Reason(err); got != "create participation: disk full" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestCodeOfUncoded(t *testing.T) {
	if got := CodeOf(errors.New("x")); got != CodeUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
	if got := Reason(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected reason %q", got)
	}
}
