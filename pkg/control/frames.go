package control

// CommandFrame is a client -> server control message. Fields beyond
// Cmd are verb-specific and left zero-valued when not applicable.
type CommandFrame struct {
	Cmd  string  `json:"cmd"`
	Val  string  `json:"val,omitempty"`
	ID   int     `json:"id,omitempty"`
	Low  float64 `json:"low,omitempty"`
	High float64 `json:"high,omitempty"`
}

// SnapshotFrame is the server -> client telemetry message broadcast on
// every publisher tick.
type SnapshotFrame struct {
	Timestamp      float64  `json:"timestamp"`
	Policy         string   `json:"policy"`
	QueueLengths   []int    `json:"queue_lengths"`
	NodeStatus     []bool   `json:"node_status"`
	Completed      []uint64 `json:"completed"`
	Migrations     uint64   `json:"migrations"`
	AvgLatency     float64  `json:"avg_latency"`
	P95Latency     float64  `json:"p95_latency"`
	Utilization    float64  `json:"utilization"`
	Recording      bool     `json:"recording"`
	ScenarioActive bool     `json:"scenario_active"`
}
