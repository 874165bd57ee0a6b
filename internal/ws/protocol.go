package ws

import (
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

type MessageType string

const (
	MsgSnapshot       MessageType = "snapshot"
	MsgDelta          MessageType = "delta"
	MsgSessionStarted MessageType = "session_started"
	MsgSessionEnded   MessageType = "session_ended"
	MsgError          MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// SnapshotPayload carries both models' full reconciled timelines, keyed by
// model tag ("A", "B").
type SnapshotPayload struct {
	Timelines map[string][]telemetry.EnrichedSample `json:"timelines"`
}

// DeltaPayload carries freshly enriched samples accumulated since the last
// throttled flush.
type DeltaPayload struct {
	Samples []telemetry.EnrichedSample `json:"samples"`
}

type SessionStartedPayload struct {
	Model      telemetry.Model `json:"model"`
	SessionID  string          `json:"sessionId"`
	TurnNumber int             `json:"turnNumber"`
}

type SessionEndedPayload struct {
	Model                   telemetry.Model `json:"model"`
	SessionID               string          `json:"sessionId"`
	TurnNumber              int             `json:"turnNumber"`
	DurationSeconds         float64         `json:"durationSeconds"`
	CumulativeOffsetSeconds float64         `json:"cumulativeOffsetSeconds"`
	SampleCount             int             `json:"sampleCount"`
}
