package upload

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/gorecite/internal/store"
)

// TrainingUploadRecord is the audit entry for one delivered artifact.
// Entries are never mutated after they are appended.
type TrainingUploadRecord struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Kind          Kind      `json:"kind"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Size          int       `json:"size"`
	MediaType     string    `json:"media_type"`
	ReferenceText string    `json:"reference_text,omitempty"`
	MistakeID     string    `json:"original_mistake_id,omitempty"`
}

type logFile struct {
	Version int                    `json:"version"`
	Records []TrainingUploadRecord `json:"records"`
}

// Log is the newest-first, append-only upload history, persisted on every
// append.
type Log struct {
	mu      sync.Mutex
	store   store.Store
	records []TrainingUploadRecord
}

// LoadLog reads the persisted history, or starts empty when absent.
func LoadLog(s store.Store) (*Log, error) {
	l := &Log{store: s}
	data, ok, err := s.Get(store.KeyUploadLog)
	if err != nil {
		return nil, err
	}
	if !ok {
		return l, nil
	}
	var file logFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding upload log: %w", err)
	}
	l.records = file.Records
	return l, nil
}

// Append prepends a record for a completed upload and returns it.
func (l *Log) Append(r Request) (TrainingUploadRecord, error) {
	rec := TrainingUploadRecord{
		ID:            uuid.NewString(),
		Filename:      r.Filename,
		Kind:          r.Kind,
		UploadedAt:    time.Now(),
		Size:          len(r.Data),
		MediaType:     r.MediaType,
		ReferenceText: r.ReferenceText,
		MistakeID:     r.MistakeID,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]TrainingUploadRecord{rec}, l.records...)
	data, err := json.Marshal(logFile{Version: 1, Records: l.records})
	if err != nil {
		return TrainingUploadRecord{}, fmt.Errorf("encoding upload log: %w", err)
	}
	if err := l.store.Set(store.KeyUploadLog, data); err != nil {
		l.records = l.records[1:]
		return TrainingUploadRecord{}, err
	}
	return rec, nil
}

// Records returns a newest-first copy of the history.
func (l *Log) Records() []TrainingUploadRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TrainingUploadRecord, len(l.records))
	copy(out, l.records)
	return out
}
