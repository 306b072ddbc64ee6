package decisionlog

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const defaultBufferSize = 1000

// ProviderStats aggregates per-provider execution outcomes.
type ProviderStats struct {
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// Snapshot is a point-in-time view of the logger's counters, served on the
// status endpoint.
type Snapshot struct {
	DecisionsLogged int64                    `json:"decisionsLogged"`
	EntriesDropped  int64                    `json:"entriesDropped"`
	Providers       map[string]ProviderStats `json:"providers"`
}

// Logger records routing decisions asynchronously. Record never blocks the
// request path: entries go through a buffered channel to a single drain
// goroutine, and a full buffer drops the entry with a warning rather than
// stalling execution.
type Logger struct {
	store  Store
	logger *logrus.Logger

	buffer   chan *Entry
	stopChan chan struct{}
	wg       sync.WaitGroup

	logged  atomic.Int64
	dropped atomic.Int64

	mu        sync.RWMutex
	stopped   bool
	providers map[string]ProviderStats
}

// New builds a logger over the given store and starts its drain goroutine.
// A zero bufferSize gets the default.
func New(store Store, logger *logrus.Logger, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	l := &Logger{
		store:     store,
		logger:    logger,
		buffer:    make(chan *Entry, bufferSize),
		stopChan:  make(chan struct{}),
		providers: make(map[string]ProviderStats),
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

// Record enqueues an entry for persistence. It is fire-and-forget: a routing
// decision must never fail because the log could not keep up.
func (l *Logger) Record(e *Entry) {
	// The read lock pins the buffer open: Close takes the write lock before
	// tearing it down.
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return
	}

	select {
	case l.buffer <- e:
	default:
		l.dropped.Add(1)
		l.logger.WithField("request_id", e.RequestID).Warn("Decision log buffer full, dropping entry")
	}
}

// Stats returns the current counters.
func (l *Logger) Stats() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	providers := make(map[string]ProviderStats, len(l.providers))
	for name, st := range l.providers {
		providers[name] = st
	}
	return Snapshot{
		DecisionsLogged: l.logged.Load(),
		EntriesDropped:  l.dropped.Load(),
		Providers:       providers,
	}
}

// Close stops the drain goroutine, flushes buffered entries, and closes the
// store. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	l.mu.Unlock()

	close(l.stopChan)
	l.wg.Wait()

	// Flush whatever made it into the buffer before stop.
	close(l.buffer)
	for e := range l.buffer {
		l.write(e)
	}
	return l.store.Close()
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for {
		select {
		case e := <-l.buffer:
			l.write(e)
		case <-l.stopChan:
			return
		}
	}
}

func (l *Logger) write(e *Entry) {
	if err := l.store.Append(e); err != nil {
		l.logger.WithError(err).Error("Failed to persist decision entry")
		return
	}
	l.logged.Add(1)

	l.mu.Lock()
	for _, attempt := range e.Attempts {
		st := l.providers[attempt.ProviderID]
		if attempt.Succeeded {
			st.Successes++
		} else {
			st.Failures++
		}
		l.providers[attempt.ProviderID] = st
	}
	l.mu.Unlock()
}
