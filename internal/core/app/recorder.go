package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"recast/internal/data/history"
	"recast/internal/data/queue"
	"time"
)

const (
	recorderCapacity = 64
	recorderBatch    = 16
	recorderWait     = 250 * time.Millisecond
)

// Recorder saves runs from a background worker so that slow history writes
// never hold up the next watch batch.
type Recorder struct {
	queue  *queue.MemoryQueue[history.Run]
	store  *history.Store
	logger *slog.Logger
	done   chan struct{}
}

// StartRecorder opens the history store and starts the worker. It returns
// nil when history is disabled.
func (a *App) StartRecorder() (*Recorder, error) {
	if !a.Config.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(a.Paths.HistoryPath)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		queue:  queue.NewMemoryQueue[history.Run](recorderCapacity),
		store:  store,
		logger: a.logger,
		done:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Record enqueues run. It reports false when the queue is full or closed.
func (r *Recorder) Record(run history.Run) bool {
	if r == nil {
		return false
	}
	if r.queue.Enqueue(run) == queue.EnqueueDropped {
		r.logger.Warn("history queue full, dropping run", "run", run.ID)
		return false
	}
	return true
}

// Close drains pending runs and closes the store.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	_ = r.queue.Close()
	<-r.done
	return r.store.Close()
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		batch, err := r.queue.DequeueBatch(context.Background(), recorderBatch, recorderWait)
		for _, run := range batch {
			if serr := r.store.SaveRun(run); serr != nil {
				r.logger.Warn("failed to record run", "run", run.ID, "error", serr)
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
	}
}
