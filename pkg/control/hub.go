// Package control implements the WebSocket control/telemetry surface:
// a broadcast publisher, a command sink, and the scripted demo
// scenario.
package control

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/relaygrid/fleetsim/pkg/events"
	"github.com/relaygrid/fleetsim/pkg/log"
	"github.com/relaygrid/fleetsim/pkg/metrics"
	"github.com/relaygrid/fleetsim/pkg/scheduler"
	"github.com/relaygrid/fleetsim/pkg/workload"
	"github.com/rs/zerolog"
)

const broadcastInterval = 150 * time.Millisecond

// Recorder is the subset of recorder.Recorder the hub needs.
type Recorder interface {
	Toggle() bool
	Recording() bool
	WriteRow(ts time.Time, policy string, migrations uint64, utilization, p95Latency float64)
}

// connection pairs a WebSocket connection with its broker subscription
// and guards the cleanup path, which a read error and a write error
// can both reach.
type connection struct {
	id      uuid.UUID
	conn    *websocket.Conn
	sub     events.Subscriber
	cleanup sync.Once
}

// Hub owns the broadcast broker, the broadcast ticker, and command
// dispatch. There is exactly one per process.
type Hub struct {
	scheduler *scheduler.Scheduler
	generator *workload.Generator
	recorder  Recorder
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	broker    *events.Broker

	scenario atomic.Bool

	connsMu sync.Mutex
	conns   map[*connection]bool

	closing chan struct{}
	wg      sync.WaitGroup
}

// New creates a Hub over the given scheduler, generator, and recorder.
func New(s *scheduler.Scheduler, g *workload.Generator, r Recorder) *Hub {
	return &Hub{
		scheduler: s,
		generator: g,
		recorder:  r,
		logger:    log.WithComponent("control"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broker:  events.NewBroker(),
		conns:   make(map[*connection]bool),
		closing: make(chan struct{}),
	}
}

// Start launches the broker and the broadcast publisher loop.
func (h *Hub) Start() {
	h.broker.Start()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runBroadcast()
	}()
}

// Stop halts the publisher, closes every connected subscriber's
// socket, and stops the broker.
func (h *Hub) Stop() {
	close(h.closing)
	h.wg.Wait()

	h.connsMu.Lock()
	conns := make([]*connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.connsMu.Unlock()

	for _, c := range conns {
		h.cleanupConnection(c)
	}

	h.broker.Stop()
}

// ServeHTTP upgrades the connection to a WebSocket and registers it as
// a subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &connection{id: uuid.New(), conn: wsConn, sub: h.broker.Subscribe()}
	h.connsMu.Lock()
	h.conns[c] = true
	h.connsMu.Unlock()
	metrics.WSSubscribers.Set(float64(h.broker.SubscriberCount()))
	h.logger.Debug().Str("conn_id", c.id.String()).Msg("subscriber connected")

	go h.writePump(c)
	h.readPump(c)
}

// cleanupConnection unsubscribes and closes the socket exactly once,
// regardless of whether the read side, the write side, or Stop
// noticed the disconnection first.
func (h *Hub) cleanupConnection(c *connection) {
	c.cleanup.Do(func() {
		h.connsMu.Lock()
		delete(h.conns, c)
		h.connsMu.Unlock()

		h.broker.Unsubscribe(c.sub)
		_ = c.conn.Close()
		metrics.WSSubscribers.Set(float64(h.broker.SubscriberCount()))
		h.logger.Debug().Str("conn_id", c.id.String()).Msg("subscriber disconnected")
	})
}

// readPump reads command frames from c until the connection closes or
// errors. Malformed frames are ignored, not fatal (§7).
func (h *Hub) readPump(c *connection) {
	defer h.cleanupConnection(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd CommandFrame
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		h.handleCommand(cmd)
	}
}

// writePump is the sole writer for c's connection, draining frames
// from its broker subscription.
func (h *Hub) writePump(c *connection) {
	defer h.cleanupConnection(c)

	for data := range c.sub {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// runBroadcast ticks every broadcastInterval, computing a snapshot and
// fanning it out best-effort.
func (h *Hub) runBroadcast() {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.tick()
		case <-h.closing:
			return
		}
	}
}

func (h *Hub) tick() {
	snap := h.scheduler.Snapshot()
	recording := h.recorder.Recording()

	frame := SnapshotFrame{
		Timestamp:      float64(snap.Timestamp.UnixNano()) / 1e9,
		Policy:         snap.Policy,
		QueueLengths:   snap.QueueLengths,
		NodeStatus:     snap.NodeStatus,
		Completed:      snap.Completed,
		Migrations:     snap.Migrations,
		AvgLatency:     snap.AvgLatency,
		P95Latency:     snap.P95Latency,
		Utilization:    snap.Utilization,
		Recording:      recording,
		ScenarioActive: h.scenario.Load(),
	}

	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal snapshot frame")
		return
	}

	h.broker.Publish(data)
	metrics.BroadcastTicksTotal.Inc()

	if recording {
		h.recorder.WriteRow(snap.Timestamp, snap.Policy, snap.Migrations, snap.Utilization, snap.P95Latency)
	}
}
