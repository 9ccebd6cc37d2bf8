package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/telemetry"
)

// ReadingWriter handles background batch writing of accepted readings to
// storage, off the transport hot paths. Readings are append-only, so a batch
// is a plain insert.
type ReadingWriter struct {
	storage   ports.Storage
	queue     chan domain.Reading
	batchSize int
	interval  time.Duration
	done      chan struct{}
}

// NewReadingWriter creates a new writer with the given queue capacity.
func NewReadingWriter(storage ports.Storage, bufferSize int) *ReadingWriter {
	return &ReadingWriter{
		storage:   storage,
		queue:     make(chan domain.Reading, bufferSize),
		batchSize: 50,
		interval:  2 * time.Second,
	}
}

// Enqueue queues a reading for persistence. When the queue is full the
// reading is dropped so a slow disk never blocks the transports.
func (w *ReadingWriter) Enqueue(reading domain.Reading) {
	select {
	case w.queue <- reading:
	default:
		telemetry.ReadingsDropped.WithLabelValues("writer", "backpressure").Inc()
	}
}

// Start begins the write loop. The loop flushes on batch size, on a timer,
// and once more on shutdown after draining what is already queued.
func (w *ReadingWriter) Start(ctx context.Context) {
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var buffer []domain.Reading
		flush := func() {
			if len(buffer) == 0 {
				return
			}
			if err := w.storage.StoreReadingsBatch(context.Background(), buffer); err != nil {
				slog.Error("Failed to flush reading batch", "count", len(buffer), "error", err)
			}
			buffer = nil
		}

		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case r := <-w.queue:
						buffer = append(buffer, r)
					default:
						flush()
						return
					}
				}
			case r := <-w.queue:
				buffer = append(buffer, r)
				if len(buffer) >= w.batchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()
}

// Wait blocks until the write loop has flushed and exited.
func (w *ReadingWriter) Wait() {
	if w.done != nil {
		<-w.done
	}
}
