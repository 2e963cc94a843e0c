package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogManager implements Manager with throttled line-based output for
// non-TTY environments (CI, containers, piped stderr).
type LogManager struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewLogManager creates a log-based progress manager writing to stderr.
func NewLogManager() *LogManager {
	return &LogManager{out: os.Stderr, now: time.Now}
}

func (m *LogManager) NewTracker(index, total int, name string) Tracker {
	return &logTracker{
		mgr:   m,
		index: index,
		total: total,
		name:  name,
		start: m.now(),
	}
}

func (m *LogManager) Wait() {}

func (m *LogManager) SetOverallStats(docsComplete, docsFlagged int, totalItems int64) {
	m.log(fmt.Sprintf("batch: %d done, %d flagged, %s items", docsComplete, docsFlagged, humanCount(totalItems)))
}

func (m *LogManager) log(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.out, "%s %s\n", m.now().Format("15:04:05"), msg)
}

// logTracker implements Tracker with throttled log output.
type logTracker struct {
	mgr     *LogManager
	index   int
	total   int
	name    string
	start   time.Time
	stage   string
	lastLog time.Time
}

const logInterval = 20 * time.Second

func (t *logTracker) log(msg string) {
	t.mgr.log(fmt.Sprintf("[%d/%d] %s  %s", t.index+1, t.total, t.name, msg))
}

func (t *logTracker) SetStage(stage string) {
	t.stage = stage
	t.lastLog = time.Time{}
	t.log(stage)
}

func (t *logTracker) SetProgress(current, total int64) {
	now := t.mgr.now()
	if now.Sub(t.lastLog) < logInterval {
		return
	}
	t.lastLog = now
	if total > 0 {
		pct := float64(current) / float64(total) * 100
		t.log(fmt.Sprintf("%s  %s / %s (%.0f%%)", t.stage, humanBytes(current), humanBytes(total), pct))
	} else if current > 0 {
		t.log(fmt.Sprintf("%s  %s", t.stage, humanBytes(current)))
	}
}

func (t *logTracker) SetCounter(name string, value int64) {
	t.log(fmt.Sprintf("%s  %s: %s", t.stage, name, humanCount(value)))
}

func (t *logTracker) Done() {
	elapsed := t.mgr.now().Sub(t.start).Truncate(time.Second)
	t.log(fmt.Sprintf("Finished in %s", elapsed))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func humanCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	}
	return fmt.Sprintf("%d", n)
}
