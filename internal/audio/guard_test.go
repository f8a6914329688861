package audio

import (
	"errors"
	"strings"
	"testing"
)

func TestGuardExclusive(t *testing.T) {
	var g Guard

	release, err := g.Acquire("session")
	if err != nil {
		t.Fatalf("first Acquire error: %v", err)
	}
	if g.Holder() != "session" {
		t.Errorf("Holder = %q, want session", g.Holder())
	}

	_, err = g.Acquire("sample")
	if !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Acquire err = %v, want ErrDeviceBusy", err)
	}
	if !strings.Contains(err.Error(), "session") {
		t.Errorf("error %q does not name the holder", err)
	}

	release()
	if g.Holder() != "" {
		t.Errorf("Holder = %q after release, want empty", g.Holder())
	}

	if _, err := g.Acquire("sample"); err != nil {
		t.Errorf("Acquire after release error: %v", err)
	}
}

func TestGuardReleaseIdempotent(t *testing.T) {
	var g Guard

	release, err := g.Acquire("session")
	if err != nil {
		t.Fatal(err)
	}
	release()

	other, err := g.Acquire("sample")
	if err != nil {
		t.Fatal(err)
	}
	// A stale double release must not free the new holder.
	release()
	if g.Holder() != "sample" {
		t.Errorf("Holder = %q, want sample", g.Holder())
	}
	other()
}
