package mistakes

import (
	"testing"

	"github.com/Alijeyrad/gorecite/internal/store"
)

func newTestQueue(t *testing.T) (*Queue, store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	q, err := Load(s)
	if err != nil {
		t.Fatal(err)
	}
	return q, s
}

func addRecord(t *testing.T, q *Queue, mistakeType string) Record {
	t.Helper()
	rec, err := q.Add(NewRecord{
		Sura:               "Al-Fatiha",
		Aya:                "1",
		MistakeType:        mistakeType,
		TranscribedSegment: "بسم اله",
		ReferenceSegment:   "بسم الله",
	})
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestAddNewestFirst(t *testing.T) {
	q, _ := newTestQueue(t)

	a := addRecord(t, q, "first")
	b := addRecord(t, q, "second")
	c := addRecord(t, q, "third")

	recs := q.Records()
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	if recs[0].ID != c.ID || recs[1].ID != b.ID || recs[2].ID != a.ID {
		t.Error("queue is not newest-first")
	}
}

func TestAddUniqueIDs(t *testing.T) {
	q, _ := newTestQueue(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rec := addRecord(t, q, "x")
		if seen[rec.ID] {
			t.Fatalf("duplicate id %s", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestAddDefaults(t *testing.T) {
	q, _ := newTestQueue(t)
	rec := addRecord(t, q, "tajweed")
	if rec.Status != StatusPending {
		t.Errorf("Status = %q, want pending", rec.Status)
	}
	if rec.Synced {
		t.Error("fresh record marked synced")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestOrderSurvivesReload(t *testing.T) {
	q, s := newTestQueue(t)
	a := addRecord(t, q, "first")
	b := addRecord(t, q, "second")

	reloaded, err := Load(s)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	recs := reloaded.Records()
	if len(recs) != 2 || recs[0].ID != b.ID || recs[1].ID != a.ID {
		t.Error("persisted order not newest-first after reload")
	}
	if recs[0].TranscribedSegment != "بسم اله" {
		t.Errorf("segment lost in round-trip: %q", recs[0].TranscribedSegment)
	}
}

func TestVerifyResetsSyncFlag(t *testing.T) {
	q, _ := newTestQueue(t)
	rec := addRecord(t, q, "x")

	_, tokens := q.Unsynced()
	if err := q.MarkSynced(tokens); err != nil {
		t.Fatal(err)
	}
	if recs := q.Records(); !recs[0].Synced {
		t.Fatal("record not marked synced")
	}

	if err := q.Verify(rec.ID, StatusIncorrect); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	recs := q.Records()
	if recs[0].Status != StatusIncorrect {
		t.Errorf("Status = %q, want incorrect", recs[0].Status)
	}
	if recs[0].Synced {
		t.Error("Verify did not reset the sync flag")
	}
}

func TestVerifyUnknownID(t *testing.T) {
	q, _ := newTestQueue(t)
	if err := q.Verify("nope", StatusCorrect); err == nil {
		t.Error("Verify of unknown id succeeded")
	}
}

func TestMarkSyncedSkipsMutatedRecords(t *testing.T) {
	q, _ := newTestQueue(t)
	rec := addRecord(t, q, "x")

	_, tokens := q.Unsynced()

	// The record is verified between token capture and MarkSynced, as if a
	// sync request were in flight.
	if err := q.Verify(rec.ID, StatusCorrect); err != nil {
		t.Fatal(err)
	}
	if err := q.MarkSynced(tokens); err != nil {
		t.Fatal(err)
	}

	if recs := q.Records(); recs[0].Synced {
		t.Error("mutated record was falsely marked synced")
	}
}

func TestMarkSyncedOnlyListedIDs(t *testing.T) {
	q, _ := newTestQueue(t)
	a := addRecord(t, q, "a")
	_, tokens := q.Unsynced() // captures only a

	b := addRecord(t, q, "b") // added during the in-flight request

	if err := q.MarkSynced(tokens); err != nil {
		t.Fatal(err)
	}
	for _, r := range q.Records() {
		switch r.ID {
		case a.ID:
			if !r.Synced {
				t.Error("submitted record not marked synced")
			}
		case b.ID:
			if r.Synced {
				t.Error("record added mid-flight marked synced")
			}
		}
	}
}

func TestUnsyncedSelectsPendingOnly(t *testing.T) {
	q, _ := newTestQueue(t)
	a := addRecord(t, q, "a")
	addRecord(t, q, "b")

	_, tokens := q.Unsynced()
	if err := q.MarkSynced(tokens[1:]); err != nil { // sync only a (older entry)
		t.Fatal(err)
	}

	recs, _ := q.Unsynced()
	if len(recs) != 1 || recs[0].ID == a.ID {
		t.Errorf("Unsynced = %d records, want just the unsynced one", len(recs))
	}
}

func TestOnChangeFires(t *testing.T) {
	q, _ := newTestQueue(t)
	fired := 0
	q.OnChange = func() { fired++ }

	rec := addRecord(t, q, "x")
	if err := q.Verify(rec.ID, StatusCorrect); err != nil {
		t.Fatal(err)
	}
	if fired != 2 {
		t.Errorf("OnChange fired %d times, want 2", fired)
	}
}

func TestLoadCorruptStore(t *testing.T) {
	s, _ := store.Open(t.TempDir())
	s.Set(store.KeyMistakeQueue, []byte("{broken")) //nolint:errcheck
	if _, err := Load(s); err == nil {
		t.Error("Load of corrupt queue succeeded")
	}
}
