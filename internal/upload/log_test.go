package upload

import (
	"testing"

	"github.com/Alijeyrad/gorecite/internal/store"
)

func newTestLog(t *testing.T) (*Log, store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l, err := LoadLog(s)
	if err != nil {
		t.Fatal(err)
	}
	return l, s
}

func TestLogAppendNewestFirst(t *testing.T) {
	l, _ := newTestLog(t)

	a, err := l.Append(Request{Kind: KindInitialRecitation, Filename: "a.wav", Data: []byte{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Append(Request{Kind: KindCorrectSample, Filename: "b.wav", Data: []byte{3}})
	if err != nil {
		t.Fatal(err)
	}

	recs := l.Records()
	if len(recs) != 2 || recs[0].ID != b.ID || recs[1].ID != a.ID {
		t.Error("log is not newest-first")
	}
	if recs[1].Size != 2 {
		t.Errorf("Size = %d, want 2", recs[1].Size)
	}
	if recs[0].Kind != KindCorrectSample {
		t.Errorf("Kind = %q", recs[0].Kind)
	}
}

func TestLogSurvivesReload(t *testing.T) {
	l, s := newTestLog(t)
	rec, err := l.Append(Request{
		Kind:          KindCorrectSample,
		Filename:      "sample.wav",
		MediaType:     "audio/wav",
		Data:          []byte{1},
		ReferenceText: "الله",
		MistakeID:     "m-9",
	})
	if err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadLog(s)
	if err != nil {
		t.Fatalf("LoadLog error: %v", err)
	}
	recs := reloaded.Records()
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("reload lost records: %+v", recs)
	}
	if recs[0].MistakeID != "m-9" || recs[0].ReferenceText != "الله" {
		t.Error("optional fields lost in round-trip")
	}
}

func TestLogCorruptStore(t *testing.T) {
	s, _ := store.Open(t.TempDir())
	s.Set(store.KeyUploadLog, []byte("not json")) //nolint:errcheck
	if _, err := LoadLog(s); err == nil {
		t.Error("LoadLog of corrupt data succeeded")
	}
}
