package source

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/config"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/router"
)

// Client maintains the single long-lived subscription to the external
// inference harness and forwards every received event envelope to the
// router in delivery order. Reconnecting after a harness restart does not
// reset engine state; already-reconciled timelines survive.
type Client struct {
	url    string
	cfg    config.HarnessConfig
	router *router.Router

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(cfg config.HarnessConfig, r *router.Router) *Client {
	return &Client{
		url:    cfg.URL,
		cfg:    cfg,
		router: r,
	}
}

// Start runs the subscription loop until the context is cancelled. Events
// are dispatched synchronously from this goroutine, so router/engine
// operations never see concurrent writers.
func (c *Client) Start(ctx context.Context) {
	delay := c.cfg.ReconnectBase
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("[harness] dial error: %v (retry in %v)", err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > c.cfg.ReconnectMax {
				delay = c.cfg.ReconnectMax
			}
			continue
		}

		log.Printf("[harness] connected to %s", c.url)
		delay = c.cfg.ReconnectBase

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		pingCtx, pingCancel := context.WithCancel(ctx)
		go c.pingLoop(pingCtx, conn)

		c.readLoop(ctx, conn)
		pingCancel()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[harness] read error: %v", err)
			}
			return
		}
		if err := c.router.HandleEvent(data); err != nil {
			log.Printf("[harness] event error: %v", err)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close tears down the current connection. Start's loop observes the
// context separately; Close just unblocks a pending read.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
