package mission

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run одно выполнение миссии.
//
// Run хранит признак работоспособности, который сбрасывается ровно один раз
// первым аварийным событием, и контекст, отменяемый при завершении работы.
// Все источники событий запускаются через Go и дожидаются друг друга в Stop.
type Run struct {
	ID        uuid.UUID
	Task      int
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	logger *logrus.Logger

	operational atomic.Bool
	failure     atomic.Value // FailureKind
}

// NewRun создаёт выполнение миссии task
func NewRun(parent context.Context, task int, startedAt time.Time, logger *logrus.Logger) *Run {
	ctx, cancel := context.WithCancel(parent)
	r := &Run{
		ID:        uuid.New(),
		Task:      task,
		StartedAt: startedAt,
		ctx:       ctx,
		cancel:    cancel,
		group:     &errgroup.Group{},
		logger:    logger,
	}
	r.operational.Store(true)
	return r
}

// Context возвращает контекст выполнения, отменяемый при завершении работы
func (r *Run) Context() context.Context {
	return r.ctx
}

// Go запускает задачу выполнения. Ошибки, кроме отмены контекста, логируются.
func (r *Run) Go(name string, fn func(ctx context.Context) error) {
	r.group.Go(func() error {
		log := r.logger.WithFields(logrus.Fields{"run_id": r.ID.String(), "task": name})
		log.Debug("Задача запущена")
		err := fn(r.ctx)
		switch {
		case err == nil:
			log.Debug("Задача завершена")
		case errors.Is(err, context.Canceled):
			log.Debug("Задача остановлена")
			err = nil
		default:
			log.WithError(err).Error("Задача завершилась с ошибкой")
		}
		return err
	})
}

// Operational истинно, пока не произошло аварийное событие
func (r *Run) Operational() bool {
	return r.operational.Load()
}

// Alive истинно, пока миссия работоспособна и не остановлена
func (r *Run) Alive() bool {
	return r.Operational() && r.ctx.Err() == nil
}

// Fail сбрасывает признак работоспособности. Возвращает true только
// для первого вызова.
func (r *Run) Fail(kind FailureKind) bool {
	if !r.operational.CompareAndSwap(true, false) {
		return false
	}
	r.failure.Store(kind)
	return true
}

// Failure возвращает причину аварии, если она была
func (r *Run) Failure() (FailureKind, bool) {
	kind, ok := r.failure.Load().(FailureKind)
	return kind, ok
}

// Stop отменяет контекст выполнения и ждёт завершения всех задач
func (r *Run) Stop() error {
	r.cancel()
	return r.group.Wait()
}
