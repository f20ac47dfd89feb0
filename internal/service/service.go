package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskhub/internal/cache"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/policy"
)

const (
	bcryptCost   = 10
	userCacheTTL = 5 * time.Minute
	// activityLimit caps activity feeds returned to clients.
	activityLimit = 50
)

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func orNoop(rec metrics.Recorder) metrics.Recorder {
	if rec == nil {
		return (*metrics.Collector)(nil)
	}
	return rec
}

// guard evaluates policy decisions, counting every decision and logging denials.
type guard struct {
	logger  *zap.Logger
	metrics metrics.Recorder
}

func newGuard(logger *zap.Logger, rec metrics.Recorder) guard {
	return guard{logger: orNop(logger), metrics: orNoop(rec)}
}

func (g guard) check(p policy.Principal, a policy.Action, t policy.Target) error {
	d := policy.Evaluate(p, a, t)
	g.metrics.RecordPolicyDecision(a.String(), d.Allowed)
	if d.Allowed {
		return nil
	}
	g.logger.Debug("authorization denied",
		zap.String("action", a.String()),
		zap.String("reason", string(d.Reason)),
		zap.Stringer("principal", p.UserID),
		zap.Bool("admin", p.IsAdmin),
	)
	return &policy.DeniedError{Decision: d}
}

// notFound translates gorm.ErrRecordNotFound into a domain sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func validationError(format string, args ...any) error {
	return apperrors.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...), "VALIDATION_ERROR")
}

// errAdminNotUser rejects operations that need a user row, such as watching or commenting.
var errAdminNotUser = validationError("the master admin cannot perform this action as a user")

// profileCache is the cache-aside store for user profiles.
type profileCache struct {
	client *cache.Client
}

func (c profileCache) key(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

func (c profileCache) get(ctx context.Context, id uuid.UUID) (*model.User, bool) {
	data, _ := c.client.Get(ctx, c.key(id))
	if data == nil {
		return nil, false
	}
	var cached model.User
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

func (c profileCache) set(ctx context.Context, user *model.User) {
	if payload, err := json.Marshal(user); err == nil {
		_ = c.client.Set(ctx, c.key(user.ID), payload, userCacheTTL)
	}
}

func (c profileCache) invalidate(ctx context.Context, ids ...uuid.UUID) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.key(id))
	}
	_ = c.client.Delete(ctx, keys...)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format("2006-01-02")
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
