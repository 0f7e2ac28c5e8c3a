package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/lock"
	"github.com/spec-kit/taskboard/internal/repository"
	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

const defaultMaxRetries = 3

// txRunner executes a mutation under a key lock inside a store transaction and
// retries it while the store reports a version conflict.
type txRunner struct {
	store      repository.Store
	locker     lock.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	maxRetries int
}

func newTxRunner(store repository.Store, locker lock.Locker, dispatcher events.Dispatcher, logger *zap.Logger, maxRetries int) txRunner {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return txRunner{
		store:      store,
		locker:     locker,
		dispatcher: dispatcher,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// run holds key (when non-empty) for the whole transaction including retries.
func (r txRunner) run(ctx context.Context, key string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if key != "" {
		release, err := r.locker.Acquire(ctx, key)
		if err != nil {
			r.logger.Warn("lock acquisition failed", zap.String("key", key), zap.Error(err))
			return apperrors.NewStorageError(err)
		}
		defer release()
	}

	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err = r.store.WithinTx(ctx, fn)
		if !errors.Is(err, repository.ErrVersionConflict) {
			break
		}
		r.logger.Debug("version conflict, retrying", zap.String("key", key), zap.Int("attempt", attempt+1))
	}
	return r.storageError(err)
}

// storageError passes domain errors through and classifies everything else.
func (r txRunner) storageError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrConcurrentModification
	}
	if errors.Is(err, repository.ErrLockTimeout) {
		r.logger.Warn("row lock timed out", zap.Error(err))
		return apperrors.NewStorageTimeout(err)
	}
	r.logger.Error("storage operation failed", zap.Error(err))
	return apperrors.NewStorageError(err)
}

func (r txRunner) publish(ctx context.Context, event events.Event) {
	if r.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := r.dispatcher.Publish(ctx, event); err != nil {
		r.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("subject", event.Subject),
			zap.Error(err))
	}
}
