package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/engine"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans reconciled timeline data out to chart/UI clients. Fresh
// samples are coalesced under a flush throttle; full-timeline snapshots go
// out on the configured refresh interval, except in render-once mode where
// clients are expected to fetch the timeline after session_ended.
//
// It implements router.Sink.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	eng     *engine.Engine

	throttle       time.Duration
	snapshotTicker *time.Ticker

	flushMu        sync.Mutex
	pendingSamples []telemetry.EnrichedSample
	flushTimer     *time.Timer
}

// NewBroadcaster creates a broadcaster over the engine's read path. A zero
// refreshInterval (render-once mode) disables the periodic snapshot loop.
func NewBroadcaster(eng *engine.Engine, throttle, refreshInterval time.Duration) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		eng:      eng,
		throttle: throttle,
	}

	if refreshInterval > 0 {
		b.snapshotTicker = time.NewTicker(refreshInterval)
		go b.snapshotLoop()
	}

	return b
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	data, _ := json.Marshal(b.snapshotMessage())

	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// SessionStarted implements router.Sink.
func (b *Broadcaster) SessionStarted(model telemetry.Model, sessionID string, turn int) {
	b.broadcast(WSMessage{
		Type: MsgSessionStarted,
		Payload: SessionStartedPayload{
			Model:      model,
			SessionID:  sessionID,
			TurnNumber: turn,
		},
	})
}

// SessionEnded implements router.Sink. Any samples still pending for the
// closed session flush first so clients never see a session_ended message
// ahead of its own data.
func (b *Broadcaster) SessionEnded(sess *engine.Session, cumulativeOffset float64) {
	b.flush()
	b.broadcast(WSMessage{
		Type: MsgSessionEnded,
		Payload: SessionEndedPayload{
			Model:                   sess.Model,
			SessionID:               sess.ID,
			TurnNumber:              sess.TurnNumber,
			DurationSeconds:         sess.DurationSeconds(),
			CumulativeOffsetSeconds: cumulativeOffset,
			SampleCount:             len(sess.Samples),
		},
	})
}

// SampleIngested implements router.Sink. Samples queue under the throttle
// so a 10 Hz telemetry cadence doesn't become 10 Hz of websocket frames.
func (b *Broadcaster) SampleIngested(sample telemetry.EnrichedSample) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingSamples = append(b.pendingSamples, sample)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	samples := b.pendingSamples
	b.pendingSamples = nil
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	b.flushMu.Unlock()

	if len(samples) == 0 {
		return
	}

	b.broadcast(WSMessage{
		Type:    MsgDelta,
		Payload: DeltaPayload{Samples: samples},
	})
}

func (b *Broadcaster) snapshotMessage() WSMessage {
	timelines := make(map[string][]telemetry.EnrichedSample, len(telemetry.Models))
	for _, m := range telemetry.Models {
		timelines[m.String()] = b.eng.FullTimeline(m)
	}
	return WSMessage{
		Type:    MsgSnapshot,
		Payload: SnapshotPayload{Timelines: timelines},
	}
}

func (b *Broadcaster) snapshotLoop() {
	for range b.snapshotTicker.C {
		b.broadcast(b.snapshotMessage())
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}
