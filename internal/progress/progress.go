package progress

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Tracker tracks progress for a single document.
type Tracker interface {
	SetStage(stage string)
	SetProgress(current, total int64)
	SetCounter(name string, value int64)
	Done()
}

// Manager creates trackers for individual documents.
type Manager interface {
	NewTracker(index, total int, name string) Tracker
	Wait()
	SetOverallStats(docsComplete, docsFlagged int, totalItems int64)
}

// MPBManager implements Manager using the mpb multi-progress-bar library.
type MPBManager struct {
	container *mpb.Progress
	overall   atomic.Value
}

// NewMPBManager creates a new mpb-based progress manager.
func NewMPBManager() *MPBManager {
	m := &MPBManager{container: mpb.New(mpb.WithWidth(60))}
	m.overall.Store("")
	return m
}

// NewTracker creates a new progress bar for a document.
func (m *MPBManager) NewTracker(index, total int, name string) Tracker {
	stage := &atomic.Value{}
	stage.Store("")
	counters := &counterSet{}
	bar := m.container.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("[%d/%d] %s ", index+1, total, name), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				s := stage.Load().(string)
				if c := counters.String(); c != "" {
					return s + "  " + c
				}
				return s
			}),
			decor.Any(func(decor.Statistics) string {
				return m.overall.Load().(string)
			}),
		),
	)
	return &mpbTracker{bar: bar, stage: stage, counters: counters}
}

// Wait waits for all progress bars to finish.
func (m *MPBManager) Wait() {
	m.container.Wait()
}

// SetOverallStats shows batch totals next to every bar.
func (m *MPBManager) SetOverallStats(docsComplete, docsFlagged int, totalItems int64) {
	m.overall.Store(fmt.Sprintf("  (%d done, %d flagged, %d items)", docsComplete, docsFlagged, totalItems))
}

type mpbTracker struct {
	bar      *mpb.Bar
	stage    *atomic.Value
	counters *counterSet
}

func (t *mpbTracker) SetStage(stage string) {
	t.stage.Store(stage)
	t.bar.SetCurrent(0)
}

func (t *mpbTracker) SetProgress(current, total int64) {
	if total > 0 {
		t.bar.SetCurrent(int64(float64(current) / float64(total) * 100))
	}
}

func (t *mpbTracker) SetCounter(name string, value int64) {
	t.counters.Set(name, value)
}

func (t *mpbTracker) Done() {
	t.bar.SetTotal(100, false)
	t.bar.SetCurrent(100)
	t.bar.Abort(false)
}

// counterSet keeps named counters in insertion order.
type counterSet struct {
	mu     sync.Mutex
	names  []string
	values map[string]int64
}

func (c *counterSet) Set(name string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]int64)
	}
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = value
}

func (c *counterSet) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s string
	for i, n := range c.names {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%d", n, c.values[n])
	}
	return s
}

// NoopManager records batch totals and prints nothing. Used when the report
// itself goes to stdout.
type NoopManager struct {
	DocsComplete int32
	DocsFlagged  int32
	TotalItems   int64
}

func (m *NoopManager) NewTracker(index, total int, name string) Tracker {
	return noopTracker{}
}

func (m *NoopManager) Wait() {}

func (m *NoopManager) SetOverallStats(docsComplete, docsFlagged int, totalItems int64) {
	atomic.StoreInt32(&m.DocsComplete, int32(docsComplete))
	atomic.StoreInt32(&m.DocsFlagged, int32(docsFlagged))
	atomic.StoreInt64(&m.TotalItems, totalItems)
}

type noopTracker struct{}

func (noopTracker) SetStage(string)          {}
func (noopTracker) SetProgress(int64, int64) {}
func (noopTracker) SetCounter(string, int64) {}
func (noopTracker) Done()                    {}
