package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFoundf("task %s not found", "task-001"), KindNotFound},
		{"invalid argument", InvalidArgumentf("bad priority"), KindInvalidArgument},
		{"conflict", Conflictf("already claimed"), KindConflict},
		{"lock timeout", LockTimeoutf("store locked"), KindLockTimeout},
		{"unavailable", Unavailablef("coordinator unreachable"), KindUnavailable},
		{"stale", Stalef("heartbeat expired"), KindStale},
		{"plain error defaults to internal", errors.New("boom"), KindInternal},
		{"wrapped classified error", fmt.Errorf("outer: %w", Conflictf("inner")), KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := NotFoundf("missing")
	if !Is(err, KindNotFound) {
		t.Error("Is(KindNotFound) = false, want true")
	}
	if Is(err, KindConflict) {
		t.Error("Is(KindConflict) = true, want false")
	}
	if Is(nil, KindInternal) {
		t.Error("Is(nil) = true, want false")
	}
}

func TestWrapPreservesChain(t *testing.T) {
	inner := errors.New("disk full")
	err := Wrap(KindInternal, "persist failed", inner)
	if !errors.Is(err, inner) {
		t.Error("errors.Is lost the wrapped error")
	}
	if got := err.Error(); got != "persist failed: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindNamesRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindInternal, KindNotFound, KindInvalidArgument, KindConflict,
		KindLockTimeout, KindUnavailable, KindStale,
	}
	for _, k := range kinds {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if got := ParseKind("no_such_kind"); got != KindInternal {
		t.Errorf("ParseKind(unknown) = %v, want KindInternal", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindInvalidArgument, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindStale, http.StatusConflict},
		{KindLockTimeout, http.StatusServiceUnavailable},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
