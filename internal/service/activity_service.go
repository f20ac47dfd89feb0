package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

const (
	activityBuffer    = 100
	activityBatchSize = 10
	activityFlush     = time.Second
)

// ActivityLogger records human-readable descriptions of mutations.
type ActivityLogger interface {
	Log(ctx context.Context, actorID uuid.UUID, action string, resourceType model.ResourceType, resourceID uuid.UUID, details string)
	// List writes out buffered entries first, so a caller reads its own changes.
	List(ctx context.Context, resourceType model.ResourceType, resourceID uuid.UUID, limit int) ([]model.ActivityLog, error)
	// Close stops accepting async entries and flushes what is buffered.
	Close()
}

type activityLogger struct {
	repo    repository.ActivityRepository
	logger  *zap.Logger
	metrics metrics.Recorder

	entries chan model.ActivityLog
	flushes chan chan struct{}
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewActivityLogger starts the batching worker.
func NewActivityLogger(repo repository.ActivityRepository, logger *zap.Logger, rec metrics.Recorder) ActivityLogger {
	l := &activityLogger{
		repo:    repo,
		logger:  orNop(logger).Named("activity"),
		metrics: orNoop(rec),
		entries: make(chan model.ActivityLog, activityBuffer),
		flushes: make(chan chan struct{}),
		done:    make(chan struct{}),
	}
	go l.worker(context.Background())
	return l
}

func (l *activityLogger) Log(ctx context.Context, actorID uuid.UUID, action string, resourceType model.ResourceType, resourceID uuid.UUID, details string) {
	entry := model.ActivityLog{
		ID:           uuid.New(),
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.closed {
		select {
		case l.entries <- entry:
			return
		default:
		}
	}

	// buffer full or worker stopped
	if err := l.repo.Create(context.WithoutCancel(ctx), &entry); err != nil {
		l.logger.Error("failed to write activity", zap.Error(err), zap.String("action", action))
		l.metrics.RecordActivityDropped(1)
		return
	}
	l.metrics.RecordActivityFlushed(1)
}

func (l *activityLogger) List(ctx context.Context, resourceType model.ResourceType, resourceID uuid.UUID, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 || limit > activityLimit {
		limit = activityLimit
	}
	l.sync(ctx)
	return l.repo.ListByResource(ctx, resourceType, resourceID, limit)
}

// sync blocks until the worker has written every entry queued before the call.
func (l *activityLogger) sync(ctx context.Context) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	done := make(chan struct{})
	select {
	case l.flushes <- done:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (l *activityLogger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.entries)
	l.mu.Unlock()
	<-l.done
}

func (l *activityLogger) worker(ctx context.Context) {
	defer close(l.done)

	batch := make([]model.ActivityLog, 0, activityBatchSize)
	ticker := time.NewTicker(activityFlush)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.repo.CreateBatch(ctx, batch); err != nil {
			l.logger.Error("failed to flush activity batch", zap.Error(err), zap.Int("count", len(batch)))
			l.metrics.RecordActivityDropped(len(batch))
		} else {
			l.metrics.RecordActivityFlushed(len(batch))
		}
		batch = make([]model.ActivityLog, 0, activityBatchSize)
	}

	for {
		select {
		case entry, ok := <-l.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= activityBatchSize {
				flush()
			}
		case done := <-l.flushes:
		drain:
			for {
				select {
				case entry, ok := <-l.entries:
					if !ok {
						break drain
					}
					batch = append(batch, entry)
				default:
					break drain
				}
			}
			flush()
			close(done)
		case <-ticker.C:
			flush()
		}
	}
}
