// Package mistakes holds the durable, offline-first queue of detected
// recitation mistakes and the engine that reconciles it with the remote
// service.
package mistakes

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/gorecite/internal/store"
)

// Status is the user-verification state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCorrect   Status = "correct"
	StatusIncorrect Status = "incorrect"
)

// Record is one detected mistake. ID is immutable and unique; Rev counts
// mutations so the sync engine can tell whether a record changed while a
// request was in flight.
type Record struct {
	ID                 string    `json:"id"`
	Sura               string    `json:"sura"`
	Aya                string    `json:"aya"`
	MistakeType        string    `json:"mistake_type"`
	TranscribedSegment string    `json:"transcribed_segment"`
	ReferenceSegment   string    `json:"reference_segment"`
	CreatedAt          time.Time `json:"created_at"`
	Status             Status    `json:"status"`
	Synced             bool      `json:"synced"`
	Rev                uint64    `json:"rev"`
}

// NewRecord carries the caller-supplied fields of a fresh mistake.
type NewRecord struct {
	Sura               string
	Aya                string
	MistakeType        string
	TranscribedSegment string
	ReferenceSegment   string
}

// SyncToken identifies one record state captured before a sync request.
type SyncToken struct {
	ID  string
	Rev uint64
}

// queueFile is the persistence envelope, versioned for forward migration.
type queueFile struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

// Queue is the newest-first mistake queue. Every mutation persists before
// returning and fires OnChange.
type Queue struct {
	// OnChange, if set, is called after every successful mutation.
	OnChange func()

	mu      sync.Mutex
	store   store.Store
	records []Record
}

// Load reads the persisted queue, or starts empty when absent.
func Load(s store.Store) (*Queue, error) {
	q := &Queue{store: s}
	data, ok, err := s.Get(store.KeyMistakeQueue)
	if err != nil {
		return nil, err
	}
	if !ok {
		return q, nil
	}
	var file queueFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding mistake queue: %w", err)
	}
	q.records = file.Records
	return q, nil
}

// Add prepends a fresh pending record and returns it.
func (q *Queue) Add(n NewRecord) (Record, error) {
	rec := Record{
		ID:                 uuid.NewString(),
		Sura:               n.Sura,
		Aya:                n.Aya,
		MistakeType:        n.MistakeType,
		TranscribedSegment: n.TranscribedSegment,
		ReferenceSegment:   n.ReferenceSegment,
		CreatedAt:          time.Now(),
		Status:             StatusPending,
		Synced:             false,
		Rev:                1,
	}

	q.mu.Lock()
	q.records = append([]Record{rec}, q.records...)
	err := q.persistLocked()
	q.mu.Unlock()

	if err != nil {
		return Record{}, err
	}
	q.notify()
	return rec, nil
}

// Verify sets the record's verification status and forces re-delivery by
// clearing its sync flag.
func (q *Queue) Verify(id string, status Status) error {
	q.mu.Lock()
	found := false
	for i := range q.records {
		if q.records[i].ID == id {
			q.records[i].Status = status
			q.records[i].Synced = false
			q.records[i].Rev++
			found = true
			break
		}
	}
	var err error
	if found {
		err = q.persistLocked()
	}
	q.mu.Unlock()

	if !found {
		return fmt.Errorf("no mistake with id %s", id)
	}
	if err != nil {
		return err
	}
	q.notify()
	return nil
}

// Records returns a newest-first copy of the queue.
func (q *Queue) Records() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Record, len(q.records))
	copy(out, q.records)
	return out
}

// Unsynced returns copies of all records awaiting delivery, plus the tokens
// MarkSynced needs. Both are captured atomically.
func (q *Queue) Unsynced() ([]Record, []SyncToken) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var recs []Record
	var tokens []SyncToken
	for _, r := range q.records {
		if !r.Synced {
			recs = append(recs, r)
			tokens = append(tokens, SyncToken{ID: r.ID, Rev: r.Rev})
		}
	}
	return recs, tokens
}

// MarkSynced flags as delivered exactly the records the tokens describe,
// skipping any record that mutated since its token was captured.
func (q *Queue) MarkSynced(tokens []SyncToken) error {
	byID := make(map[string]uint64, len(tokens))
	for _, tok := range tokens {
		byID[tok.ID] = tok.Rev
	}

	q.mu.Lock()
	changed := false
	for i := range q.records {
		rev, ok := byID[q.records[i].ID]
		if ok && q.records[i].Rev == rev && !q.records[i].Synced {
			q.records[i].Synced = true
			changed = true
		}
	}
	var err error
	if changed {
		err = q.persistLocked()
	}
	q.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		q.notify()
	}
	return nil
}

func (q *Queue) persistLocked() error {
	data, err := json.Marshal(queueFile{Version: 1, Records: q.records})
	if err != nil {
		return fmt.Errorf("encoding mistake queue: %w", err)
	}
	return q.store.Set(store.KeyMistakeQueue, data)
}

func (q *Queue) notify() {
	if q.OnChange != nil {
		q.OnChange()
	}
}
