// Package framewriter saves captured frames to disk on a bounded worker
// pool so the delivery goroutine only pays for one pixel copy.
package framewriter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/capture/internal/logging"
	"github.com/breeze-rmm/capture/pkg/frame"
)

var log = logging.L("framewriter")

type job struct {
	f    *frame.Frame
	path string
}

// Writer encodes frames to numbered files in one directory.
type Writer struct {
	dir    string
	format frame.Format

	// mu is held shared by submitters from the accepting check through the
	// send, and exclusively by Close while it flips accepting.
	mu        sync.RWMutex
	queue     chan job
	wg        sync.WaitGroup
	accepting atomic.Bool
	closeOnce sync.Once

	seq     atomic.Uint64
	saved   atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64

	errMu    sync.Mutex
	firstErr error
}

// Stats is a snapshot of writer counters.
type Stats struct {
	Saved   uint64 `json:"saved" yaml:"saved"`
	Failed  uint64 `json:"failed" yaml:"failed"`
	Dropped uint64 `json:"dropped" yaml:"dropped"`
}

// New creates dir and starts workers goroutines with a queue of queueSize.
func New(dir string, format frame.Format, workers, queueSize int) (*Writer, error) {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("framewriter: create %s: %w", dir, err)
	}

	w := &Writer{
		dir:    dir,
		format: format,
		queue:  make(chan job, queueSize),
	}
	w.accepting.Store(true)
	for i := 0; i < workers; i++ {
		go w.worker()
	}
	log.Debug("frame writer started", "dir", dir, "format", format.String(), "workers", workers, "queueSize", queueSize)
	return w, nil
}

// Submit copies f and queues it for saving without blocking. It returns the
// target path, or false when the writer is closed or the queue is full.
func (w *Writer) Submit(f *frame.Frame) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.accepting.Load() {
		return "", false
	}
	j := w.newJob(f)

	w.wg.Add(1)
	select {
	case w.queue <- j:
		return j.path, true
	default:
		w.wg.Done()
		w.dropped.Add(1)
		log.Warn("frame writer queue full, frame dropped", "path", j.path)
		return "", false
	}
}

// SubmitWait copies f and queues it, blocking until there is room or ctx ends.
func (w *Writer) SubmitWait(ctx context.Context, f *frame.Frame) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.accepting.Load() {
		return "", fmt.Errorf("framewriter: closed")
	}
	j := w.newJob(f)

	w.wg.Add(1)
	select {
	case w.queue <- j:
		return j.path, nil
	case <-ctx.Done():
		w.wg.Done()
		w.dropped.Add(1)
		return "", ctx.Err()
	}
}

func (w *Writer) newJob(f *frame.Frame) job {
	n := w.seq.Add(1)
	name := fmt.Sprintf("frame_%06d%s", n, w.format.Extension())
	return job{f: f.Clone(), path: filepath.Join(w.dir, name)}
}

// Close stops accepting frames and waits for queued saves, bounded by ctx.
// A SubmitWait already blocked on a full queue finishes before Close starts
// waiting. It returns the first save error, if any.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.accepting.Store(false)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("frame writer drain timed out", "pending", len(w.queue))
		err = ctx.Err()
	}
	w.closeOnce.Do(func() { close(w.queue) })

	if err != nil {
		return err
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.firstErr
}

func (w *Writer) Stats() Stats {
	return Stats{Saved: w.saved.Load(), Failed: w.failed.Load(), Dropped: w.dropped.Load()}
}

func (w *Writer) worker() {
	for j := range w.queue {
		w.save(j)
	}
}

func (w *Writer) save(j job) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("frame save panicked", "panic", r, "stack", string(debug.Stack()))
			w.fail(fmt.Errorf("framewriter: save %s panicked: %v", j.path, r))
		}
	}()

	if err := j.f.Save(j.path); err != nil {
		log.Warn("frame save failed", "path", j.path, logging.KeyError, err)
		w.fail(err)
		return
	}
	w.saved.Add(1)
}

func (w *Writer) fail(err error) {
	w.failed.Add(1)
	w.errMu.Lock()
	if w.firstErr == nil {
		w.firstErr = err
	}
	w.errMu.Unlock()
}
