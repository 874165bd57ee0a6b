package engine

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

// modelTimeline holds all session state for one model. The two models'
// timelines are fully independent: events for A never touch B's timeline.
type modelTimeline struct {
	closed           []*Session
	active           *Session
	cumulativeOffset float64 // seconds of generation across all closed turns

	ingested      int64
	droppedNoTurn int64
}

// Stats is a point-in-time counter snapshot for one model, consumed by the
// Prometheus collector.
type Stats struct {
	Active               bool
	ClosedSessions       int
	CumulativeOffset     float64
	SamplesIngested      int64
	SamplesDroppedNoTurn int64
}

// Engine is the telemetry session and timeline reconciliation engine. It is
// the sole writer of session state: all mutation goes through StartSession,
// Ingest, EndSession, and Reset. Reads return deep copies so a polling
// consumer always sees a stable snapshot while ingestion continues.
//
// Writes are serialized by the event router's dispatch order; the lock
// exists so the snapshot read path can run from HTTP/WS handlers without
// coordinating with the ingestion goroutine.
type Engine struct {
	mu        sync.RWMutex
	timelines map[telemetry.Model]*modelTimeline
	now       func() time.Time
}

func NewEngine() *Engine {
	e := &Engine{
		timelines: make(map[telemetry.Model]*modelTimeline, len(telemetry.Models)),
		now:       time.Now,
	}
	for _, m := range telemetry.Models {
		e.timelines[m] = &modelTimeline{}
	}
	return e
}

// StartSession opens a new turn for the model. If a session is already
// active this is a benign no-op (the harness may deliver a first-token
// signal more than once) and the existing session's ID is returned with
// started=false.
//
// The new session's offset is the accumulated duration of all prior closed
// turns, so its relative-time axis continues exactly where the previous
// turn ended.
func (e *Engine) StartSession(model telemetry.Model) (sessionID string, started bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tl := e.timelines[model]
	if tl.active != nil {
		log.Printf("[engine] start for model %s ignored: session %s already active", model, tl.active.ID)
		return tl.active.ID, false
	}

	sess := &Session{
		ID:               uuid.NewString(),
		Model:            model,
		TurnNumber:       len(tl.closed) + 1,
		StartWallClockMs: e.now().UnixMilli(),
		Active:           true,
		OffsetSeconds:    tl.cumulativeOffset,
	}
	tl.active = sess
	log.Printf("[engine] model %s turn %d started (session=%s, offset=%.3fs)",
		model, sess.TurnNumber, sess.ID, sess.OffsetSeconds)
	return sess.ID, true
}

// Ingest attributes a sample to its model's active session and stamps the
// reconciled relative-time coordinate. A sample arriving with no active
// session — before the start signal, or after the turn closed — is dropped
// rather than attributed to the wrong turn.
func (e *Engine) Ingest(sample telemetry.TelemetrySample) (telemetry.EnrichedSample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tl := e.timelines[sample.Model]
	if tl.active == nil {
		tl.droppedNoTurn++
		log.Printf("[engine] dropped sample for model %s: no active session (t=%d)",
			sample.Model, sample.WallClockMs)
		return telemetry.EnrichedSample{}, false
	}

	sessionRelative := float64(sample.WallClockMs-tl.active.StartWallClockMs) / 1000
	if sessionRelative < 0 {
		// Clock skew between harness and engine; clamp to the turn start
		// so the timeline stays monotonic relative to the offset.
		sessionRelative = 0
	}

	enriched := telemetry.EnrichedSample{
		TelemetrySample: sample,
		RelativeSeconds: tl.active.OffsetSeconds + sessionRelative,
	}
	tl.active.Samples = append(tl.active.Samples, enriched)
	tl.ingested++
	return enriched.Clone(), true
}

// EndSession seals the model's active session. Both natural completion and
// user-initiated stop collapse to this transition; already-collected samples
// are preserved. With no active session this is a benign no-op.
//
// Sealing is the step that guarantees timeline continuity: the cumulative
// offset advances by the measured turn duration, so the next turn's axis
// starts exactly where this one ended. Think-time between turns (including
// any cooldown wait for a thermal baseline) does not advance the offset.
func (e *Engine) EndSession(model telemetry.Model) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endLocked(model)
}

func (e *Engine) endLocked(model telemetry.Model) (*Session, bool) {
	tl := e.timelines[model]
	if tl.active == nil {
		log.Printf("[engine] end for model %s ignored: no active session", model)
		return nil, false
	}

	sess := tl.active
	sess.EndWallClockMs = e.now().UnixMilli()
	sess.Active = false
	tl.active = nil
	tl.closed = append(tl.closed, sess)
	tl.cumulativeOffset = sess.OffsetSeconds + sess.DurationSeconds()

	log.Printf("[engine] model %s turn %d ended (%.3fs, %d samples, cumulative=%.3fs)",
		model, sess.TurnNumber, sess.DurationSeconds(), len(sess.Samples), tl.cumulativeOffset)
	return sess.Clone(), true
}

// Reset returns the engine to its zero state for a brand-new conversation.
// Any still-active session is force-closed first so its samples are sealed
// rather than orphaned mid-mutation.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, m := range telemetry.Models {
		if e.timelines[m].active != nil {
			e.endLocked(m)
		}
		e.timelines[m] = &modelTimeline{}
	}
	log.Printf("[engine] reset: both timelines cleared")
}

// HasActiveSession reports whether the model has an open turn.
func (e *Engine) HasActiveSession(model telemetry.Model) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.timelines[model].active != nil
}

// FullTimeline returns every enriched sample for the model — closed turns
// in turn order followed by the active turn's samples — as a copied
// snapshot. This is what overlay comparison charts consume.
func (e *Engine) FullTimeline(model telemetry.Model) []telemetry.EnrichedSample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tl := e.timelines[model]
	n := 0
	for _, s := range tl.closed {
		n += len(s.Samples)
	}
	if tl.active != nil {
		n += len(tl.active.Samples)
	}

	out := make([]telemetry.EnrichedSample, 0, n)
	for _, s := range tl.closed {
		for _, smp := range s.Samples {
			out = append(out, smp.Clone())
		}
	}
	if tl.active != nil {
		for _, smp := range tl.active.Samples {
			out = append(out, smp.Clone())
		}
	}
	return out
}

// LatestSession returns the active session's samples as a copied snapshot,
// or an empty slice when the model is idle. This is what current-value
// widgets consume.
func (e *Engine) LatestSession(model telemetry.Model) []telemetry.EnrichedSample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tl := e.timelines[model]
	if tl.active == nil {
		return []telemetry.EnrichedSample{}
	}
	return telemetry.CloneSamples(tl.active.Samples)
}

// Sessions returns digests of all sessions for the model, closed turns
// first, the active turn (if any) last.
func (e *Engine) Sessions(model telemetry.Model) []Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tl := e.timelines[model]
	out := make([]Summary, 0, len(tl.closed)+1)
	for _, s := range tl.closed {
		out = append(out, s.summary())
	}
	if tl.active != nil {
		out = append(out, tl.active.summary())
	}
	return out
}

// Stats returns the model's counter snapshot for metrics export.
func (e *Engine) Stats(model telemetry.Model) Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tl := e.timelines[model]
	return Stats{
		Active:               tl.active != nil,
		ClosedSessions:       len(tl.closed),
		CumulativeOffset:     tl.cumulativeOffset,
		SamplesIngested:      tl.ingested,
		SamplesDroppedNoTurn: tl.droppedNoTurn,
	}
}
