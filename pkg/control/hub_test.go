package control

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relaygrid/fleetsim/pkg/node"
	"github.com/relaygrid/fleetsim/pkg/scheduler"
	"github.com/relaygrid/fleetsim/pkg/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	on bool
}

func (f *fakeRecorder) Toggle() bool {
	f.on = !f.on
	return f.on
}
func (f *fakeRecorder) Recording() bool { return f.on }
func (f *fakeRecorder) WriteRow(time.Time, string, uint64, float64, float64) {}

func newTestHub(t *testing.T) (*Hub, *scheduler.Scheduler, *workload.Generator) {
	t.Helper()
	nodes := []*node.Node{node.New(0, 1.0), node.New(1, 1.0)}
	s := scheduler.New(nodes, scheduler.RoundRobin)
	s.Start()
	t.Cleanup(s.Stop)

	g := workload.New(s, 1)

	h := New(s, g, &fakeRecorder{})
	h.Start()
	t.Cleanup(h.Stop)

	return h, s, g
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBroadcastDeliversSnapshotFrame(t *testing.T) {
	h, _, _ := newTestHub(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame SnapshotFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Len(t, frame.QueueLengths, 2)
	assert.Len(t, frame.NodeStatus, 2)
	assert.Equal(t, "round_robin", frame.Policy)
}

func TestPolicyCommandChangesPolicy(t *testing.T) {
	h, s, _ := newTestHub(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	cmd, _ := json.Marshal(CommandFrame{Cmd: "policy", Val: "work_stealing"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, cmd))

	assert.Eventually(t, func() bool {
		return s.Policy() == scheduler.WorkStealing
	}, time.Second, 10*time.Millisecond)
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h, s, _ := newTestHub(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	cmd, _ := json.Marshal(CommandFrame{Cmd: "not_a_real_verb"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, cmd))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, scheduler.RoundRobin, s.Policy())
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	h, _, _ := newTestHub(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// connection should remain open and keep receiving broadcasts
	_, _, err := conn.ReadMessage()
	assert.NoError(t, err)
}

func TestStartScenarioIgnoresReentry(t *testing.T) {
	h, _, _ := newTestHub(t)
	h.startScenario()
	assert.True(t, h.scenario.Load())
	h.startScenario() // second call must be a no-op, not a second goroutine
	assert.True(t, h.scenario.Load())
}

func TestKillCommandDeactivatesNode(t *testing.T) {
	h, s, _ := newTestHub(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	cmd, _ := json.Marshal(CommandFrame{Cmd: "kill", ID: 0})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, cmd))

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.NodeStatus[0]
	}, time.Second, 10*time.Millisecond)
}
