package scan

import (
	"strings"
	"sync"
)

// progressLog accumulates human-readable lines across workers. It is the
// only mutable state shared during the RUNNING phase, guarded by one mutex.
// The callback is invoked outside the critical section so a slow observer
// never blocks a worker.
type progressLog struct {
	mu       sync.Mutex
	lines    []string
	callback func(string)
}

func newProgressLog(callback func(string)) *progressLog {
	return &progressLog{callback: callback}
}

func (p *progressLog) append(line string) {
	p.mu.Lock()
	p.lines = append(p.lines, line)
	text := strings.Join(p.lines, "\n")
	p.mu.Unlock()
	if p.callback != nil {
		p.callback(text)
	}
}

func (p *progressLog) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.lines, "\n")
}
