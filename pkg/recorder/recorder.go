// Package recorder implements the CSV telemetry sink: one row per
// broadcast tick while recording is enabled.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaygrid/fleetsim/pkg/log"
	"github.com/relaygrid/fleetsim/pkg/metrics"
	"github.com/rs/zerolog"
)

var header = []string{"timestamp", "policy", "migrations", "utilization", "p95_latency"}

// Recorder owns the active CSV sink, if any. Toggling is idempotent:
// calling Toggle twice returns to the prior state, leaving a
// well-formed file with a header and one row per tick recorded in
// between.
type Recorder struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// New creates a Recorder that writes run files under dir.
func New(dir string) *Recorder {
	return &Recorder{
		dir:    dir,
		logger: log.WithComponent("recorder"),
	}
}

// Recording reports whether a sink is currently open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// Toggle flips the recording state and returns the new state. Turning
// on opens a fresh file named run_<unix_seconds>.csv under dir and
// writes the header row. Turning off flushes and closes the file.
func (r *Recorder) Toggle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		r.closeLocked()
		return false
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Error().Err(err).Msg("failed to create recording directory, recording disabled")
		return false
	}

	name := filepath.Join(r.dir, fmt.Sprintf("run_%d.csv", time.Now().Unix()))
	f, err := os.Create(name)
	if err != nil {
		r.logger.Error().Err(err).Str("file", name).Msg("failed to open recording sink, recording disabled")
		return false
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		r.logger.Error().Err(err).Msg("failed to write CSV header, recording disabled")
		_ = f.Close()
		return false
	}
	w.Flush()

	r.file = f
	r.writer = w
	runID := uuid.New()
	r.logger.Info().Str("file", name).Str("run_id", runID.String()).Msg("recording started")
	return true
}

// WriteRow appends one row if recording is active. It is a no-op
// otherwise. I/O failures are logged and disable recording rather than
// propagated, per the best-effort recording policy.
func (r *Recorder) WriteRow(ts time.Time, policy string, migrations uint64, utilization, p95Latency float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return
	}

	row := []string{
		strconv.FormatFloat(float64(ts.Unix())+float64(ts.Nanosecond())/1e9, 'f', 3, 64),
		policy,
		strconv.FormatUint(migrations, 10),
		strconv.FormatFloat(utilization, 'f', 1, 64),
		strconv.FormatFloat(p95Latency, 'f', 3, 64),
	}

	if err := r.writer.Write(row); err != nil {
		r.logger.Error().Err(err).Msg("failed to write CSV row, disabling recording")
		r.closeLocked()
		return
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		r.logger.Error().Err(err).Msg("CSV flush failed, disabling recording")
		r.closeLocked()
		return
	}

	metrics.RecordRowsTotal.Inc()
}

// Close closes any open sink. Safe to call when not recording.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Recorder) closeLocked() {
	if r.file == nil {
		return
	}
	r.writer.Flush()
	_ = r.file.Close()
	r.file = nil
	r.writer = nil
	r.logger.Info().Msg("recording stopped")
}
