package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FeedbackMode selects how the client surfaces a detected mistake.
type FeedbackMode string

const (
	ModeHighlight FeedbackMode = "highlight"
	ModeBeep      FeedbackMode = "beep"
	ModeSpoken    FeedbackMode = "spoken"
)

// Valid reports whether m is one of the known feedback modes.
func (m FeedbackMode) Valid() bool {
	switch m {
	case ModeHighlight, ModeBeep, ModeSpoken:
		return true
	}
	return false
}

// ClientConfig is the first text frame sent after the channel opens, and
// again whenever the feedback mode changes mid-session.
type ClientConfig struct {
	Type         string       `json:"type"`
	FeedbackMode FeedbackMode `json:"feedbackMode"`
}

// NewClientConfig builds a config frame for the given mode.
func NewClientConfig(mode FeedbackMode) ClientConfig {
	return ClientConfig{Type: "config", FeedbackMode: mode}
}

// DiffType tags one alignment unit between transcription and reference.
type DiffType string

const (
	DiffEqual           DiffType = "equal"
	DiffInsertion       DiffType = "insertion"
	DiffDeletion        DiffType = "deletion"
	DiffReplacementRef  DiffType = "replacement_ref"
	DiffReplacementTrans DiffType = "replacement_trans"
)

// DiffEntry describes one alignment unit at a word position.
type DiffEntry struct {
	Type  DiffType `json:"type"`
	Index int      `json:"index"`
	Word  string   `json:"word"`
}

// Event is a decoded server-to-client protocol event.
type Event interface{ eventType() string }

// VerseIdentified replaces the active verse context wholesale.
type VerseIdentified struct {
	SuraName   string `json:"sura_name"`
	AyahText   string `json:"ayah_text"`
	AyahNumber int    `json:"ayah_number"`
}

func (VerseIdentified) eventType() string { return "verse_identified" }

// DiffUpdate carries the latest word alignment for the active verse.
type DiffUpdate struct {
	Diff []DiffEntry `json:"diff"`
}

func (DiffUpdate) eventType() string { return "diff_update" }

// MistakeEvent reports one detected discrepancy. CorrectionAudioB64, when
// present, is a base64 WAV clip of the corrected recitation.
type MistakeEvent struct {
	MistakeType        string `json:"mistake_type"`
	ReferenceWord      string `json:"reference_word"`
	TranscribedWord    string `json:"transcribed_word"`
	TranscribedSegment string `json:"transcribed_segment"`
	ReferenceSegment   string `json:"reference_segment"`
	CorrectionAudioB64 string `json:"correction_audio_base64,omitempty"`
}

func (MistakeEvent) eventType() string { return "mistake_event" }

// ErrUnknownEvent is returned by DecodeEvent for frame types this client
// does not understand. Callers are expected to ignore such frames.
type ErrUnknownEvent struct{ Type string }

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// DecodeEvent decodes one text frame by its type envelope.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}

	switch envelope.Type {
	case "verse_identified":
		var ev VerseIdentified
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decoding verse_identified: %w", err)
		}
		return ev, nil
	case "diff_update":
		var ev DiffUpdate
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decoding diff_update: %w", err)
		}
		return ev, nil
	case "mistake_event":
		var ev MistakeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decoding mistake_event: %w", err)
		}
		return ev, nil
	default:
		return nil, ErrUnknownEvent{Type: envelope.Type}
	}
}

// SplitWords tokenizes verse text on whitespace, discarding empty tokens.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// Highlights computes the highlighted-index set from a diff sequence:
// the indices whose entries are deletions or reference replacements.
func Highlights(diff []DiffEntry) map[int]bool {
	set := make(map[int]bool)
	for _, d := range diff {
		if d.Type == DiffDeletion || d.Type == DiffReplacementRef {
			set[d.Index] = true
		}
	}
	return set
}
