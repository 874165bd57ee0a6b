package source

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/router"
)

// modelScript shapes one model's synthetic generation behavior.
type modelScript struct {
	tag        string
	baseTPS    float64
	basePowerW float64
	turnTicks  int // telemetry ticks per turn
	stopAtTick int // user-stop mid-turn when > 0 (every other turn)
	restDelay  int // idle ticks between turns (think-time, excluded from offsets)
}

type modelRun struct {
	script   modelScript
	turn     int
	tick     int // tick within the current turn
	resting  int // remaining rest ticks
	energyWh float64
	active   bool
}

// Generator drives the router with synthetic two-model conversations for
// demo mode: interleaved turns, telemetry cadence, user stops, and
// think-time gaps. It speaks the harness wire format end to end so the
// router's normalization path is exercised exactly as in production.
//
// Power and throughput curves are synthetic; per-core utilization and RAM
// come from the real host via gopsutil.
type Generator struct {
	router   *router.Router
	host     *HostReader
	interval time.Duration
	runs     []*modelRun
}

func NewGenerator(r *router.Router, interval time.Duration) *Generator {
	return &Generator{
		router:   r,
		host:     NewHostReader(),
		interval: interval,
		runs: []*modelRun{
			{script: modelScript{
				tag:     "A",
				baseTPS: 42, basePowerW: 18, turnTicks: 40, restDelay: 12,
			}, resting: 2},
			{script: modelScript{
				tag:     "B",
				baseTPS: 27, basePowerW: 24, turnTicks: 55, stopAtTick: 30, restDelay: 18,
			}, resting: 8},
		},
	}
}

func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	log.Printf("[demo] generator started (interval=%v)", g.interval)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[demo] generator stopped")
			return
		case <-ticker.C:
			for _, run := range g.runs {
				g.advance(run)
			}
		}
	}
}

func (g *Generator) advance(run *modelRun) {
	s := run.script

	if !run.active {
		if run.resting > 0 {
			run.resting--
			return
		}
		run.turn++
		run.tick = 0
		run.energyWh = 0
		run.active = true
		g.sendToken(s.tag, false)
		return
	}

	run.tick++

	// User-initiated stop on even turns of scripts that define one.
	if s.stopAtTick > 0 && run.turn%2 == 0 && run.tick >= s.stopAtTick {
		g.send(router.EventStopped, map[string]any{"model": s.tag})
		run.active = false
		run.resting = s.restDelay
		return
	}

	if run.tick >= s.turnTicks {
		g.sendToken(s.tag, true)
		run.active = false
		run.resting = s.restDelay
		return
	}

	g.sendToken(s.tag, false)
	g.sendTelemetry(run)
}

func (g *Generator) sendToken(tag string, finished bool) {
	g.send(router.EventToken, map[string]any{
		"model":    tag,
		"token":    "lorem",
		"finished": finished,
	})
}

func (g *Generator) sendTelemetry(run *modelRun) {
	s := run.script
	t := float64(run.tick)

	// Power ramps up over the first few ticks, then oscillates gently.
	power := s.basePowerW * (0.6 + 0.4*math.Min(t/8, 1)) * (1 + 0.08*math.Sin(t/5))
	power += rand.Float64()*1.5 - 0.75
	run.energyWh += power * g.interval.Hours()

	// Throughput warms up, then decays slowly as context grows.
	tps := s.baseTPS * math.Min(t/6, 1) * (1 - 0.002*t)
	tps += rand.Float64()*2 - 1
	if tps < 0 {
		tps = 0
	}

	payload := map[string]any{
		"timestamp_ms":  time.Now().UnixMilli(),
		"model":         s.tag,
		"cpu_power_w":   round1(power * 0.45),
		"gpu_power_w":   round1(power * 0.55),
		"tps":           round1(tps),
		"tps_avg":       round1(s.baseTPS * 0.9),
		"gpu_energy_wh": round3(run.energyWh),
	}

	if hm, err := g.host.Read(); err == nil {
		payload["core_util"] = hm.CoreUtil
		payload["ram_used_gb"] = round1(hm.RAMUsedGB)
		if hm.CPUTempC > 0 {
			payload["cpu_temp_c"] = round1(hm.CPUTempC)
		}
	}

	g.send(router.EventTelemetry, payload)
}

func (g *Generator) send(eventType string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[demo] payload marshal error: %v", err)
		return
	}
	env, err := json.Marshal(router.Envelope{Type: eventType, Payload: body})
	if err != nil {
		log.Printf("[demo] envelope marshal error: %v", err)
		return
	}
	if err := g.router.HandleEvent(env); err != nil {
		log.Printf("[demo] event error: %v", err)
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
