package audit

import (
	"context"
	"sync"
	"time"

	"github.com/supportflow/conversation-router/pkg/observability"
)

// AsyncWriter buffers match records and writes them to the store from worker
// goroutines so matching operations never block on audit persistence.
type AsyncWriter struct {
	store     Store
	writeChan chan *MatchRecord
	workers   int

	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// AsyncWriterConfig configures the async writer.
type AsyncWriterConfig struct {
	// BufferSize is the channel buffer size. Default: 1000.
	BufferSize int
	// Workers is the number of worker goroutines. Default: 2.
	Workers int
}

// NewAsyncWriter creates a new async writer over the given store.
func NewAsyncWriter(store Store, cfg AsyncWriterConfig) *AsyncWriter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &AsyncWriter{
		store:     store,
		writeChan: make(chan *MatchRecord, cfg.BufferSize),
		workers:   cfg.Workers,
		done:      make(chan struct{}),
	}
}

// Start begins the worker goroutines. Calling Start twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	observability.Infof("Audit writer started with %d workers, buffer size %d",
		w.workers, cap(w.writeChan))
}

// Record enqueues a record for asynchronous persistence. When the buffer is
// full the record is dropped rather than blocking the matching path.
func (w *AsyncWriter) Record(record *MatchRecord) {
	if record == nil || !w.store.IsEnabled() {
		return
	}
	select {
	case w.writeChan <- record:
	default:
		observability.Warnf("Audit write buffer full, dropping record %s", record.ID)
	}
}

// Stop drains the buffer and stops the workers.
func (w *AsyncWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeChan:
			w.write(record)
		case <-w.done:
			// Drain what is already buffered before exiting.
			for {
				select {
				case record := <-w.writeChan:
					w.write(record)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) write(record *MatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.store.StoreRecord(ctx, record); err != nil {
		observability.Errorf("Failed to store audit record %s: %v", record.ID, err)
	}
}
