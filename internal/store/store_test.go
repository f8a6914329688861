package store

import (
	"bytes"
	"testing"
)

func TestGetAbsentKey(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	_, ok, err := s.Get("nothing")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Error("absent key reported present")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	want := []byte(`{"hello":"world"}`)
	if err := s.Set(KeyMistakeQueue, want); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, ok, err := s.Get(KeyMistakeQueue)
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want present", ok, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get = %q, want %q", got, want)
	}
}

func TestSetOverwrites(t *testing.T) {
	s, _ := Open(t.TempDir())
	s.Set("k", []byte("one")) //nolint:errcheck
	s.Set("k", []byte("two")) //nolint:errcheck
	got, _, _ := s.Get("k")
	if string(got) != "two" {
		t.Errorf("Get = %q, want two", got)
	}
}

func TestUserIDCreatedOnce(t *testing.T) {
	s, _ := Open(t.TempDir())

	first, err := UserID(s)
	if err != nil {
		t.Fatalf("UserID error: %v", err)
	}
	if first == "" {
		t.Fatal("UserID returned empty id")
	}
	second, err := UserID(s)
	if err != nil {
		t.Fatalf("UserID (second) error: %v", err)
	}
	if second != first {
		t.Errorf("UserID changed across calls: %q then %q", first, second)
	}
}

func TestUserIDSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s1, _ := Open(dir)
	first, err := UserID(s1)
	if err != nil {
		t.Fatalf("UserID error: %v", err)
	}
	s2, _ := Open(dir)
	second, err := UserID(s2)
	if err != nil {
		t.Fatalf("UserID after reopen error: %v", err)
	}
	if second != first {
		t.Errorf("UserID changed across reopen: %q then %q", first, second)
	}
}
