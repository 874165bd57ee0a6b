package source

import (
	"testing"
	"time"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/engine"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/router"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

func TestGeneratorDrivesFullTurnCycle(t *testing.T) {
	eng := engine.NewEngine()
	r := router.NewRouter(eng, nil)
	g := NewGenerator(r, time.Millisecond)

	run := g.runs[0]
	run.resting = 0

	// First advance opens the turn via a token event.
	g.advance(run)
	if !eng.HasActiveSession(telemetry.ModelA) {
		t.Fatal("model A should have an active session after turn start")
	}

	// Telemetry flows on subsequent ticks.
	for i := 0; i < 5; i++ {
		g.advance(run)
	}
	if got := len(eng.LatestSession(telemetry.ModelA)); got == 0 {
		t.Error("active session accumulated no samples")
	}

	// Run the turn out; the finish token seals it.
	for run.active {
		g.advance(run)
	}
	if eng.HasActiveSession(telemetry.ModelA) {
		t.Error("session should have closed after the scripted turn length")
	}
	if got := eng.Stats(telemetry.ModelA).ClosedSessions; got != 1 {
		t.Errorf("closed sessions = %d, want 1", got)
	}
	if run.resting != run.script.restDelay {
		t.Errorf("rest delay = %d, want %d", run.resting, run.script.restDelay)
	}
}

func TestGeneratorUserStopOnEvenTurns(t *testing.T) {
	eng := engine.NewEngine()
	r := router.NewRouter(eng, nil)
	g := NewGenerator(r, time.Millisecond)

	run := g.runs[1] // model B's script defines stopAtTick
	if run.script.stopAtTick == 0 {
		t.Fatal("test expects a stop-at tick in the model B script")
	}
	run.resting = 0

	// Turn 1 (odd): runs to natural completion.
	g.advance(run)
	for run.active {
		g.advance(run)
	}
	s1 := eng.Stats(telemetry.ModelB)
	if s1.ClosedSessions != 1 {
		t.Fatalf("closed sessions after turn 1 = %d, want 1", s1.ClosedSessions)
	}

	// Turn 2 (even): cancelled mid-turn, partial data preserved.
	run.resting = 0
	g.advance(run)
	for run.active {
		g.advance(run)
	}
	if got := eng.Stats(telemetry.ModelB).ClosedSessions; got != 2 {
		t.Fatalf("closed sessions after turn 2 = %d, want 2", got)
	}
	sessions := eng.Sessions(telemetry.ModelB)
	if sessions[1].SampleCount == 0 {
		t.Error("cancelled turn should preserve already-collected samples")
	}
	if sessions[1].SampleCount >= sessions[0].SampleCount {
		t.Errorf("cancelled turn has %d samples, expected fewer than the full turn's %d",
			sessions[1].SampleCount, sessions[0].SampleCount)
	}
}
