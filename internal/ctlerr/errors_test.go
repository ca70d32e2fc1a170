package ctlerr

import (
	"errors"
	"syscall"
	"testing"
)

func TestUnwrapMatchesErrno(t *testing.T) {
	err := Exists("iface.add", `name "p0" already in use`)
	if !errors.Is(err, syscall.EEXIST) {
		t.Fatalf("expected errors.Is to match EEXIST")
	}
	if errors.Is(err, syscall.ENOENT) {
		t.Fatalf("did not expect ENOENT match")
	}
	if got := Errno(err); got != syscall.EEXIST {
		t.Fatalf("Errno() = %v, want EEXIST", got)
	}
}

func TestIsBestEffort(t *testing.T) {
	if !IsBestEffort(FromDriver("vlan.filter", syscall.ENOTSUP)) {
		t.Fatalf("ENOTSUP should be best-effort")
	}
	if !IsBestEffort(FromDriver("vlan.filter", syscall.ENOSYS)) {
		t.Fatalf("ENOSYS should be best-effort")
	}
	if IsBestEffort(FromDriver("vlan.filter", syscall.EIO)) {
		t.Fatalf("EIO should not be best-effort")
	}
}
