// Package cleanup sweeps expired verification codes and workspace invites.
// Lookups already reject expired rows, so the sweep only keeps the tables small.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskhub/internal/metrics"
)

// VerificationSweeper deletes verification rows that expired before a cutoff.
type VerificationSweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// InviteSweeper deletes workspace invites that expired before a cutoff.
type InviteSweeper interface {
	DeleteExpiredInvites(ctx context.Context, before time.Time) (int64, error)
}

// Job removes expired rows in one pass per Run.
type Job struct {
	verifications VerificationSweeper
	invites       InviteSweeper
	logger        *zap.Logger
	metrics       metrics.Recorder
	now           func() time.Time
}

// NewJob creates a cleanup job. A nil recorder disables metrics.
func NewJob(verifications VerificationSweeper, invites InviteSweeper, logger *zap.Logger, rec metrics.Recorder) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = (*metrics.Collector)(nil)
	}
	return &Job{
		verifications: verifications,
		invites:       invites,
		logger:        logger.Named("cleanup"),
		metrics:       rec,
		now:           time.Now,
	}
}

// Run deletes every verification and invite row whose expiry has passed.
// Both sweeps run even if the first fails; the errors are joined.
func (j *Job) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.UTC()

	var errs []error

	verifications, err := j.verifications.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("verification sweep failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("delete expired verifications: %w", err))
	} else {
		j.metrics.RecordCleanup("verification", verifications)
	}

	invites, err := j.invites.DeleteExpiredInvites(ctx, cutoff)
	if err != nil {
		j.logger.Error("invite sweep failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("delete expired invites: %w", err))
	} else {
		j.metrics.RecordCleanup("invite", invites)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.logger.Info("cleanup finished",
		zap.Int64("verifications_deleted", verifications),
		zap.Int64("invites_deleted", invites),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Start runs the job every interval until ctx is cancelled. The first run happens
// immediately. Start blocks; call it in its own goroutine.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// errors are logged inside Run
		_ = j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
