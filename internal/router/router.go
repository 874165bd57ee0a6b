package router

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/engine"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

// Sink receives notifications after the engine has applied an event. The
// WebSocket broadcaster implements this to push deltas to chart consumers.
// A nil sink disables notification.
type Sink interface {
	SessionStarted(model telemetry.Model, sessionID string, turn int)
	SessionEnded(sess *engine.Session, cumulativeOffset float64)
	SampleIngested(sample telemetry.EnrichedSample)
}

// Router is the boundary adapter between the harness wire format and the
// engine. It validates and coerces loosely-typed payloads into the
// canonical TelemetrySample shape and forwards lifecycle signals, in the
// order events were received. It holds no session state of its own.
type Router struct {
	engine *engine.Engine
	sink   Sink

	malformed atomic.Int64 // samples discarded at the boundary
}

func NewRouter(eng *engine.Engine, sink Sink) *Router {
	return &Router{engine: eng, sink: sink}
}

// MalformedSamples returns the number of telemetry payloads discarded
// because they carried no resolvable model tag or failed to decode.
func (r *Router) MalformedSamples() int64 {
	return r.malformed.Load()
}

// Envelope is the outer wire message from the inference harness.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Harness event types.
const (
	EventToken     = "token"
	EventStopped   = "generation_stopped"
	EventTelemetry = "telemetry_update"
	EventSummary   = "completion_summary"
)

type tokenEvent struct {
	Model    string `json:"model"`
	Token    string `json:"token"`
	Finished bool   `json:"finished"`
}

type stoppedEvent struct {
	Model string `json:"model"`
}

// HandleEvent decodes one harness envelope and dispatches it. Unknown event
// types are ignored so harness protocol additions don't break older engines.
func (r *Router) HandleEvent(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}

	switch env.Type {
	case EventToken:
		var ev tokenEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("decoding token event: %w", err)
		}
		model, err := telemetry.ParseModel(ev.Model)
		if err != nil {
			return fmt.Errorf("token event: %w", err)
		}
		r.OnStreamToken(model, ev.Finished)

	case EventStopped:
		var ev stoppedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("decoding stop event: %w", err)
		}
		model, err := telemetry.ParseModel(ev.Model)
		if err != nil {
			return fmt.Errorf("stop event: %w", err)
		}
		r.OnExternalStop(model)

	case EventTelemetry:
		r.OnTelemetrySample(env.Payload)

	case EventSummary:
		// Completion summaries restate totals the timeline already carries.

	default:
		log.Printf("[router] ignoring unknown event type %q", env.Type)
	}
	return nil
}

// OnStreamToken routes token-stream lifecycle signals. The first token of a
// stream (finished=false) opens a session if none is active; finished=true
// closes it. Both directions are idempotent at the engine.
func (r *Router) OnStreamToken(model telemetry.Model, finished bool) {
	if finished {
		r.endSession(model)
		return
	}
	if sessionID, started := r.engine.StartSession(model); started && r.sink != nil {
		sessions := r.engine.Sessions(model)
		r.sink.SessionStarted(model, sessionID, sessions[len(sessions)-1].TurnNumber)
	}
}

// OnExternalStop handles user-initiated cancellation. The session still
// closes normally so partial data is preserved for the next turn's offset.
func (r *Router) OnExternalStop(model telemetry.Model) {
	r.endSession(model)
}

func (r *Router) endSession(model telemetry.Model) {
	sess, ended := r.engine.EndSession(model)
	if ended && r.sink != nil {
		r.sink.SessionEnded(sess, r.engine.Stats(model).CumulativeOffset)
	}
}

// OnTelemetrySample validates a raw telemetry payload and forwards it into
// the engine. Payloads without a resolvable model tag are discarded with a
// warning, never attributed by inference.
func (r *Router) OnTelemetrySample(raw []byte) {
	sample, err := normalizeSample(raw)
	if err != nil {
		n := r.malformed.Add(1)
		log.Printf("[router] discarding telemetry sample: %v (%d discarded so far)", err, n)
		return
	}
	if enriched, ok := r.engine.Ingest(sample); ok && r.sink != nil {
		r.sink.SampleIngested(enriched)
	}
}
