package history

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Entry is one completed analysis.
// It serves as an aggregate root in the DDD context
type Entry struct {
	id         string
	tool       assessment.Tool
	target     string
	source     assessment.Source
	score      float64
	riskLevel  string
	summary    string
	payload    json.RawMessage
	scheduleID string
	createdAt  time.Time
}

// NewEntry records a result. payload is the normalized result as JSON.
func NewEntry(tool assessment.Tool, target string, source assessment.Source, score float64, riskLevel, summary string, payload json.RawMessage) (*Entry, error) {
	if _, err := assessment.ParseTool(string(tool)); err != nil {
		return nil, err
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, sharedErrors.ErrInvalidData
	}
	return &Entry{
		id:        uuid.NewString(),
		tool:      tool,
		target:    strings.TrimSpace(target),
		source:    source,
		score:     score,
		riskLevel: riskLevel,
		summary:   summary,
		payload:   payload,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct creates an entry from persisted data (for repository use)
func Reconstruct(id string, tool assessment.Tool, target string, source assessment.Source, score float64, riskLevel, summary string, payload json.RawMessage, scheduleID string, createdAt time.Time) *Entry {
	return &Entry{
		id:         id,
		tool:       tool,
		target:     target,
		source:     source,
		score:      score,
		riskLevel:  riskLevel,
		summary:    summary,
		payload:    payload,
		scheduleID: scheduleID,
		createdAt:  createdAt,
	}
}

// AttachSchedule links the entry to the schedule that produced it.
func (e *Entry) AttachSchedule(id string) { e.scheduleID = id }

func (e *Entry) ID() string                { return e.id }
func (e *Entry) Tool() assessment.Tool     { return e.tool }
func (e *Entry) Target() string            { return e.target }
func (e *Entry) Source() assessment.Source { return e.source }
func (e *Entry) Score() float64            { return e.score }
func (e *Entry) RiskLevel() string         { return e.riskLevel }
func (e *Entry) Summary() string           { return e.summary }
func (e *Entry) ScheduleID() string        { return e.scheduleID }
func (e *Entry) CreatedAt() time.Time      { return e.createdAt }

// Payload returns a copy of the stored result JSON.
func (e *Entry) Payload() json.RawMessage {
	out := make(json.RawMessage, len(e.payload))
	copy(out, e.payload)
	return out
}

// DecodePayload unmarshals the stored result into v.
func (e *Entry) DecodePayload(v any) error {
	return json.Unmarshal(e.payload, v)
}

// Filter narrows a history listing. Zero values match everything.
type Filter struct {
	Tool       assessment.Tool
	ScheduleID string
	Since      time.Time
	Limit      int
}
