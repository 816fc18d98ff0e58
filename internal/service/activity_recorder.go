package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"imagevault/internal/logging"
	"imagevault/internal/model"
	"imagevault/internal/repository"
)

const (
	activityBuffer    = 100
	activityBatchSize = 10
	activityFlush     = time.Second
)

// ActivityRecorder persists asset activity in batches off the request path.
type ActivityRecorder interface {
	Record(ctx context.Context, ownerID uuid.UUID, action model.ActivityAction, filename string)
}

// ActivityWorker is the channel-backed ActivityRecorder.
type ActivityWorker struct {
	repo   repository.ActivityLogRepository
	logger *slog.Logger
	ch     chan model.ActivityLog
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewActivityRecorder starts the batching worker. It runs until ctx is
// cancelled or Close is called, flushing whatever is buffered on the way out.
func NewActivityRecorder(ctx context.Context, repo repository.ActivityLogRepository, logger *slog.Logger) *ActivityWorker {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ActivityWorker{
		repo:   repo,
		logger: logger,
		ch:     make(chan model.ActivityLog, activityBuffer),
		done:   make(chan struct{}),
	}
	go r.worker(ctx)
	return r
}

// Record enqueues an entry without blocking. A full buffer, or a worker that
// has already stopped, falls back to a synchronous insert.
func (r *ActivityWorker) Record(ctx context.Context, ownerID uuid.UUID, action model.ActivityAction, filename string) {
	entry := model.ActivityLog{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Action:    action,
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.RLock()
	if !r.closed {
		select {
		case r.ch <- entry:
			r.mu.RUnlock()
			return
		default:
		}
	}
	r.mu.RUnlock()

	if err := r.repo.Create(ctx, &entry); err != nil {
		logging.LogError(ctx, r.logger, "record activity", err)
	}
}

// Close stops the worker after it drains the buffer.
func (r *ActivityWorker) Close() {
	r.stop()
	<-r.done
}

// stop closes the channel once. Later Records go straight to the repository.
func (r *ActivityWorker) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

func (r *ActivityWorker) worker(ctx context.Context) {
	defer close(r.done)

	batch := make([]model.ActivityLog, 0, activityBatchSize)
	ticker := time.NewTicker(activityFlush)
	defer ticker.Stop()

	// Flushes outlive ctx so a shutdown still persists the tail of the batch.
	flushCtx := context.WithoutCancel(ctx)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.repo.CreateBatch(flushCtx, batch); err != nil {
			logging.LogError(flushCtx, r.logger, "flush activity batch", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= activityBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			r.stop()
			for entry := range r.ch {
				batch = append(batch, entry)
			}
			flush()
			return
		}
	}
}
