package mistakes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

const (
	// syncInterval is the steady-state reconciliation cadence.
	syncInterval = 60 * time.Second

	// syncWarmup delays the one-shot initial attempt after startup.
	syncWarmup = 5 * time.Second

	syncRequestTimeout = 30 * time.Second
)

// wireRecord is a Record as the sync endpoint sees it: no sync flag, no
// revision counter.
type wireRecord struct {
	ID                 string    `json:"id"`
	Sura               string    `json:"sura"`
	Aya                string    `json:"aya"`
	MistakeType        string    `json:"mistake_type"`
	TranscribedSegment string    `json:"transcribed_segment"`
	ReferenceSegment   string    `json:"reference_segment"`
	CreatedAt          time.Time `json:"created_at"`
	Status             Status    `json:"status"`
}

type syncPayload struct {
	Mistakes []wireRecord `json:"mistakes"`
}

// Syncer delivers unsynced records in batches: every 60 seconds, plus one
// warm-up attempt 5 seconds after Start. Delivery is at-least-once; the
// server deduplicates by id.
type Syncer struct {
	// Queue is the mistake queue to reconcile. Required.
	Queue *Queue

	// Endpoint is the full sync URL, e.g. "http://host/api/mistakes/sync".
	Endpoint string

	// HTTPClient defaults to a client with a 30 s timeout.
	HTTPClient *http.Client

	// OnStatus receives human-readable sync outcomes, if set.
	OnStatus func(string)

	// inFlight serializes attempts; an attempt that finds it held is skipped.
	inFlight sync.Mutex

	schedMu sync.Mutex
	sched   *gocron.Scheduler
}

func (s *Syncer) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: syncRequestTimeout}
}

// Start schedules the warm-up and periodic attempts. Idempotent.
func (s *Syncer) Start() {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	if s.sched != nil {
		return
	}
	sched := gocron.NewScheduler(time.UTC)
	sched.Every(syncWarmup).LimitRunsTo(1).Do(s.syncJob)  //nolint:errcheck
	sched.Every(syncInterval).Do(s.syncJob)               //nolint:errcheck
	sched.StartAsync()
	s.sched = sched
}

// Stop cancels all scheduled attempts. Idempotent.
func (s *Syncer) Stop() {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	if s.sched != nil {
		s.sched.Stop()
		s.sched = nil
	}
}

func (s *Syncer) syncJob() {
	if err := s.SyncOnce(context.Background()); err != nil {
		s.status(fmt.Sprintf("Sync failed: %v", err))
	}
}

// SyncOnce submits the current unsynced batch. No-op when the queue is clean
// or another attempt is already in flight. On failure no record changes
// state; the batch stays pending for the next attempt.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if !s.inFlight.TryLock() {
		return nil
	}
	defer s.inFlight.Unlock()

	// The token set is captured here, before the request: records added or
	// re-marked pending while the request is in flight keep their pending
	// state.
	recs, tokens := s.Queue.Unsynced()
	if len(recs) == 0 {
		return nil
	}

	payload := syncPayload{Mistakes: make([]wireRecord, 0, len(recs))}
	for _, r := range recs {
		payload.Mistakes = append(payload.Mistakes, wireRecord{
			ID:                 r.ID,
			Sura:               r.Sura,
			Aya:                r.Aya,
			MistakeType:        r.MistakeType,
			TranscribedSegment: r.TranscribedSegment,
			ReferenceSegment:   r.ReferenceSegment,
			CreatedAt:          r.CreatedAt,
			Status:             r.Status,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("sending mistakes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sync endpoint returned HTTP %d", resp.StatusCode)
	}

	if err := s.Queue.MarkSynced(tokens); err != nil {
		return fmt.Errorf("marking records synced: %w", err)
	}
	s.status(fmt.Sprintf("Synced %d mistake(s)", len(tokens)))
	return nil
}

func (s *Syncer) status(msg string) {
	if s.OnStatus != nil {
		s.OnStatus(msg)
	}
}
