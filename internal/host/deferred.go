package host

import (
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// deferredLog holds log calls in memory until replay. Its logger shares no
// lock with the logger it replays into, so it is safe to use while the
// other threads of the process are suspended.
type deferredLog struct {
	mu      sync.Mutex
	entries []deferredEntry
}

type deferredEntry struct {
	name  string
	level hclog.Level
	msg   string
	args  []interface{}
}

var _ hclog.SinkAdapter = (*deferredLog)(nil)

func newDeferredLog(target hclog.Logger) (hclog.Logger, *deferredLog) {
	d := &deferredLog{}
	logger := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:   target.Name(),
		Level:  hclog.Off,
		Output: io.Discard,
	})
	logger.RegisterSink(d)
	return logger, d
}

// Accept implements hclog.SinkAdapter
func (d *deferredLog) Accept(name string, level hclog.Level, msg string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, deferredEntry{name: name, level: level, msg: msg, args: args})
}

// replay writes the held entries to target, in order, under their own names
func (d *deferredLog) replay(target hclog.Logger) {
	d.mu.Lock()
	entries := d.entries
	d.entries = nil
	d.mu.Unlock()

	for _, e := range entries {
		target.ResetNamed(e.name).Log(e.level, e.msg, e.args...)
	}
}
