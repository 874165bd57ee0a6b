package router

import (
	"encoding/json"
	"testing"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/engine"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

// recordingSink captures router notifications for assertions.
type recordingSink struct {
	started []string
	ended   []string
	samples []telemetry.EnrichedSample
}

func (s *recordingSink) SessionStarted(model telemetry.Model, sessionID string, turn int) {
	s.started = append(s.started, model.String())
}

func (s *recordingSink) SessionEnded(sess *engine.Session, cumulativeOffset float64) {
	s.ended = append(s.ended, sess.Model.String())
}

func (s *recordingSink) SampleIngested(sample telemetry.EnrichedSample) {
	s.samples = append(s.samples, sample)
}

func envelope(t *testing.T, eventType string, payload map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env, err := json.Marshal(Envelope{Type: eventType, Payload: body})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return env
}

func TestTokenLifecycle(t *testing.T) {
	eng := engine.NewEngine()
	sink := &recordingSink{}
	r := NewRouter(eng, sink)

	// First token opens the session; repeated tokens are idempotent.
	for i := 0; i < 3; i++ {
		if err := r.HandleEvent(envelope(t, EventToken, map[string]any{
			"model": "A", "token": "hi", "finished": false,
		})); err != nil {
			t.Fatalf("token event error: %v", err)
		}
	}
	if !eng.HasActiveSession(telemetry.ModelA) {
		t.Fatal("model A should have an active session")
	}
	if len(sink.started) != 1 {
		t.Errorf("got %d started notifications, want 1", len(sink.started))
	}

	if err := r.HandleEvent(envelope(t, EventToken, map[string]any{
		"model": "A", "token": "", "finished": true,
	})); err != nil {
		t.Fatalf("finish event error: %v", err)
	}
	if eng.HasActiveSession(telemetry.ModelA) {
		t.Error("model A session should be closed")
	}
	if len(sink.ended) != 1 {
		t.Errorf("got %d ended notifications, want 1", len(sink.ended))
	}
}

func TestExternalStopPreservesPartialData(t *testing.T) {
	eng := engine.NewEngine()
	r := NewRouter(eng, nil)

	r.HandleEvent(envelope(t, EventToken, map[string]any{"model": "B", "finished": false}))
	r.HandleEvent(envelope(t, EventTelemetry, map[string]any{
		"timestamp_ms": 1000, "model": "B", "tps": 8.5,
	}))
	r.HandleEvent(envelope(t, EventStopped, map[string]any{"model": "B"}))

	if eng.HasActiveSession(telemetry.ModelB) {
		t.Error("user stop should close the session")
	}
	timeline := eng.FullTimeline(telemetry.ModelB)
	if len(timeline) != 1 {
		t.Fatalf("timeline has %d samples, want 1 (partial data preserved)", len(timeline))
	}
}

func TestTelemetryMissingModelDiscarded(t *testing.T) {
	eng := engine.NewEngine()
	r := NewRouter(eng, nil)

	r.HandleEvent(envelope(t, EventToken, map[string]any{"model": "A", "finished": false}))
	if err := r.HandleEvent(envelope(t, EventTelemetry, map[string]any{
		"timestamp_ms": 1000, "tps": 10.0, // no model tag
	})); err != nil {
		t.Fatalf("missing model must not surface as an error: %v", err)
	}

	if got := r.MalformedSamples(); got != 1 {
		t.Errorf("malformed counter = %d, want 1", got)
	}
	for _, m := range telemetry.Models {
		if got := len(eng.FullTimeline(m)); got != 0 {
			t.Errorf("model %s timeline has %d samples, want 0", m, got)
		}
	}
}

func TestUnitNormalization(t *testing.T) {
	eng := engine.NewEngine()
	sink := &recordingSink{}
	r := NewRouter(eng, sink)

	r.HandleEvent(envelope(t, EventToken, map[string]any{"model": "A", "finished": false}))
	r.HandleEvent(envelope(t, EventTelemetry, map[string]any{
		"timestamp_ms":   1000,
		"model":          "model_a", // legacy tag spelling
		"gpu_power_mw":   24000.0,   // legacy milliwatt field
		"ram_used_bytes": 4.0 * 1024 * 1024 * 1024,
	}))

	if len(sink.samples) != 1 {
		t.Fatalf("got %d ingested samples, want 1", len(sink.samples))
	}
	s := sink.samples[0]
	if s.Model != telemetry.ModelA {
		t.Errorf("model = %s, want A", s.Model)
	}
	if s.GPUPowerW == nil || *s.GPUPowerW != 24.0 {
		t.Errorf("gpu power = %v, want 24 W", s.GPUPowerW)
	}
	if s.RAMUsedGB == nil || *s.RAMUsedGB != 4.0 {
		t.Errorf("ram = %v, want 4 GB", s.RAMUsedGB)
	}
}

func TestWattFieldWinsOverMilliwatt(t *testing.T) {
	eng := engine.NewEngine()
	sink := &recordingSink{}
	r := NewRouter(eng, sink)

	r.HandleEvent(envelope(t, EventToken, map[string]any{"model": "B", "finished": false}))
	r.HandleEvent(envelope(t, EventTelemetry, map[string]any{
		"timestamp_ms": 1000,
		"model":        "B",
		"cpu_power_w":  12.5,
		"cpu_power_mw": 99999.0,
	}))

	if len(sink.samples) != 1 {
		t.Fatalf("got %d ingested samples, want 1", len(sink.samples))
	}
	if got := sink.samples[0].CPUPowerW; got == nil || *got != 12.5 {
		t.Errorf("cpu power = %v, want 12.5 W", got)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	eng := engine.NewEngine()
	r := NewRouter(eng, nil)

	if err := r.HandleEvent(envelope(t, "future_event", map[string]any{"x": 1})); err != nil {
		t.Errorf("unknown event type should be ignored, got error: %v", err)
	}
}

func TestMalformedEnvelope(t *testing.T) {
	r := NewRouter(engine.NewEngine(), nil)

	if err := r.HandleEvent([]byte("{not json")); err == nil {
		t.Error("malformed envelope should return an error")
	}
	if err := r.HandleEvent(envelope(t, EventToken, nil)); err == nil {
		t.Error("token event without a model tag should return an error")
	}
}

func TestSampleBeforeStartDropped(t *testing.T) {
	eng := engine.NewEngine()
	sink := &recordingSink{}
	r := NewRouter(eng, sink)

	// Telemetry racing ahead of the start signal is dropped, not queued.
	r.HandleEvent(envelope(t, EventTelemetry, map[string]any{
		"timestamp_ms": 500, "model": "A", "tps": 5.0,
	}))
	r.HandleEvent(envelope(t, EventToken, map[string]any{"model": "A", "finished": false}))

	if len(sink.samples) != 0 {
		t.Errorf("got %d ingested samples, want 0", len(sink.samples))
	}
	if got := len(eng.FullTimeline(telemetry.ModelA)); got != 0 {
		t.Errorf("timeline has %d samples, want 0", got)
	}
}
