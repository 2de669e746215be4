package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Workers drain a buffered queue of ingestion jobs in the background. The
// synchronous API trigger and the queue share the same Pipeline, so a
// document processes identically either way.
type Workers struct {
	pipeline *Pipeline
	jobs     chan Ref
	count    int
	wg       sync.WaitGroup
	log      *zap.Logger
}

// NewWorkers sizes the pool and its queue.
func NewWorkers(pipeline *Pipeline, count, queueSize int, log *zap.Logger) *Workers {
	if count < 1 {
		count = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &Workers{
		pipeline: pipeline,
		jobs:     make(chan Ref, queueSize),
		count:    count,
		log:      log,
	}
}

// Start launches the pool. Workers exit when the queue closes or ctx ends.
func (w *Workers) Start(ctx context.Context) {
	for i := 0; i < w.count; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			for {
				select {
				case ref, ok := <-w.jobs:
					if !ok {
						return
					}
					if _, err := w.pipeline.Ingest(ctx, ref); err != nil {
						w.log.Error("background ingestion failed",
							zap.Int("worker", id),
							zap.String("doc_id", ref.DocID),
							zap.Error(err))
					}
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	w.log.Info("ingestion workers started", zap.Int("count", w.count))
}

// Enqueue queues a job without blocking. False means the queue is full; the
// document stays UPLOADED and can be ingested through the trigger endpoint.
func (w *Workers) Enqueue(ref Ref) bool {
	select {
	case w.jobs <- ref:
		return true
	default:
		w.log.Warn("ingestion queue full", zap.String("doc_id", ref.DocID))
		return false
	}
}

// Stop closes the queue and waits for in-flight jobs.
func (w *Workers) Stop() {
	close(w.jobs)
	w.wg.Wait()
}
