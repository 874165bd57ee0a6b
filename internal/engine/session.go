package engine

import (
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

// Session is one generation turn for one model, from first token to
// completion or user cancellation. While active it accumulates enriched
// samples in arrival order; once closed it is immutable.
type Session struct {
	ID               string                     `json:"id"`
	Model            telemetry.Model            `json:"model"`
	TurnNumber       int                        `json:"turnNumber"`
	StartWallClockMs int64                      `json:"startedAtMs"`
	EndWallClockMs   int64                      `json:"endedAtMs,omitempty"` // zero while active
	Active           bool                       `json:"active"`
	OffsetSeconds    float64                    `json:"offsetSeconds"`
	Samples          []telemetry.EnrichedSample `json:"samples"`
}

// DurationSeconds returns the measured turn duration. Zero while the
// session is still active.
func (s *Session) DurationSeconds() float64 {
	if s.Active || s.EndWallClockMs == 0 {
		return 0
	}
	d := float64(s.EndWallClockMs-s.StartWallClockMs) / 1000
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy of the Session, duplicating the sample slice
// so the copy can be handed out without aliasing engine state.
func (s *Session) Clone() *Session {
	c := *s
	c.Samples = telemetry.CloneSamples(s.Samples)
	return &c
}

// Summary is a closed-session digest without the sample payload, served by
// the sessions listing endpoint.
type Summary struct {
	ID               string          `json:"id"`
	Model            telemetry.Model `json:"model"`
	TurnNumber       int             `json:"turnNumber"`
	StartWallClockMs int64           `json:"startedAtMs"`
	EndWallClockMs   int64           `json:"endedAtMs,omitempty"`
	Active           bool            `json:"active"`
	OffsetSeconds    float64         `json:"offsetSeconds"`
	DurationSeconds  float64         `json:"durationSeconds"`
	SampleCount      int             `json:"sampleCount"`
}

func (s *Session) summary() Summary {
	return Summary{
		ID:               s.ID,
		Model:            s.Model,
		TurnNumber:       s.TurnNumber,
		StartWallClockMs: s.StartWallClockMs,
		EndWallClockMs:   s.EndWallClockMs,
		Active:           s.Active,
		OffsetSeconds:    s.OffsetSeconds,
		DurationSeconds:  s.DurationSeconds(),
		SampleCount:      len(s.Samples),
	}
}
