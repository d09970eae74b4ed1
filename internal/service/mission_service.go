package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"task-manager-go/internal/config"
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/metrics"
	"task-manager-go/internal/mission"
	"task-manager-go/internal/mission/task1"
	"task-manager-go/internal/mission/task2"
	"task-manager-go/internal/mission/task3"
	"task-manager-go/internal/watch"
	"task-manager-go/pkg/models"
)

var (
	// ErrInvalidTask неизвестный номер миссии
	ErrInvalidTask = errors.New("invalid task")
	// ErrAlreadyStarted миссия уже запущена
	ErrAlreadyStarted = errors.New("mission already started")
	// ErrNotStarted миссия ещё не запускалась
	ErrNotStarted = errors.New("mission not started")
)

const finishTimeout = 5 * time.Second

// Factory создаёт миссию по зависимостям и параметрам
type Factory func(deps mission.Deps, params config.MissionParams) mission.Mission

// HealthReporter принимает статус узла для проверок здоровья
type HealthReporter interface {
	SetServing(serving bool)
}

// MissionService запускает миссии и следит за их выполнением.
// За время жизни процесса запускается не более одной миссии.
type MissionService struct {
	deps    mission.Deps
	params  config.MissionParams
	probes  map[mission.Service]mission.Probe
	journal mission.Journal
	health  HealthReporter
	logger  *logrus.Logger

	factories map[int]Factory

	mu         sync.Mutex
	starting   bool
	dispatcher *mission.Dispatcher
	stopped    bool
}

// NewMissionService создаёт сервис с миссиями 1-3. journal и health могут быть nil.
func NewMissionService(
	deps mission.Deps,
	params config.MissionParams,
	probes map[mission.Service]mission.Probe,
	journal mission.Journal,
	health HealthReporter,
	logger *logrus.Logger,
) *MissionService {
	s := &MissionService{
		deps:      deps,
		params:    params,
		probes:    probes,
		journal:   journal,
		health:    health,
		logger:    logger,
		factories: make(map[int]Factory),
	}
	s.Register(1, func(deps mission.Deps, params config.MissionParams) mission.Mission { return task1.New(deps, params) })
	s.Register(2, func(deps mission.Deps, params config.MissionParams) mission.Mission { return task2.New(deps, params) })
	s.Register(3, func(deps mission.Deps, params config.MissionParams) mission.Mission { return task3.New(deps, params) })
	return s
}

// Register добавляет или заменяет миссию с номером task
func (s *MissionService) Register(task int, factory Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[task] = factory
}

// Announce сообщает мониторингу, что узел инициализирован
func (s *MissionService) Announce() {
	s.publishNodeStatus(models.NodeStatusInitialized)
}

// StartMission запускает миссию task: дожидается нужных ей сервисов,
// запускает сторожевые таймеры и подаёт событие Start.
func (s *MissionService) StartMission(ctx context.Context, task int) (*MissionStatus, error) {
	s.mu.Lock()
	factory, ok := s.factories[task]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrInvalidTask, task)
	}
	if s.starting || s.dispatcher != nil {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.starting = true
	s.mu.Unlock()

	log := s.logger.WithField("task", task)
	log.Info("Получена команда запуска миссии")

	m := factory(s.deps, s.params)
	if err := s.waitServices(ctx, m.Needs()); err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		log.WithError(err).Error("Необходимые сервисы недоступны, миссия не запущена")
		return nil, fmt.Errorf("failed to wait for services: %w", err)
	}

	run := mission.NewRun(context.Background(), task, s.deps.Clock.Now(), s.logger)
	reporter := mission.NewReporter(s.deps.Publisher, s.journal, s.deps.Clock, s.logger)
	d := mission.NewDispatcher(run, m, reporter, s.logger)
	d.Observe(func(tr fsm.Transition) {
		if tr.Protocol() && s.health != nil {
			s.health.SetServing(false)
		}
	})

	s.mu.Lock()
	s.dispatcher = d
	s.starting = false
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.BeginRun(ctx, run.ID, task); err != nil {
			log.WithError(err).Warn("Не удалось записать начало миссии в журнал")
		}
	}
	metrics.SetMissionActive(task, true)
	s.publishNodeStatus(models.NodeStatusStarted)

	d.Dispatch(mission.Start)
	if m.Watchdogs() {
		s.startWatchdogs(d, task)
	}

	log.WithField("run_id", run.ID.String()).Info("Миссия запущена")
	return s.status(d), nil
}

// waitServices дожидается готовности всех сервисов из needs параллельно
func (s *MissionService) waitServices(ctx context.Context, needs []mission.Service) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, need := range needs {
		probe, ok := s.probes[need]
		if !ok {
			s.logger.WithField("service", string(need)).Debug("Проверка готовности сервиса не задана")
			continue
		}
		need := need
		g.Go(func() error {
			if err := probe.WaitReady(ctx); err != nil {
				return fmt.Errorf("%s: %w", need, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *MissionService) startWatchdogs(d *mission.Dispatcher, task int) {
	run := d.Run()

	battery := watch.BatteryWatchdog{
		Clock:      s.deps.Clock,
		Read:       s.deps.Telemetry.BatteryVoltage,
		MinVoltage: s.params.MinBatteryVoltage,
		Alive:      run.Alive,
		OnLow:      func() { d.Fail(mission.LowVoltageDetected) },
		Logger:     s.logger,
	}
	run.Go("battery-watchdog", battery.Run)

	timer := watch.MissionTimer{
		Clock:     s.deps.Clock,
		Start:     run.StartedAt,
		Limit:     s.timeLimit(task),
		Alive:     run.Alive,
		OnTimeout: func() { d.Fail(mission.Timeout) },
		Logger:    s.logger,
	}
	run.Go("mission-timer", timer.Run)
}

func (s *MissionService) timeLimit(task int) time.Duration {
	if task == 2 {
		return s.params.Task2.MaxDuration()
	}
	return s.params.Task1.MaxDuration()
}

// Status возвращает состояние текущей миссии
func (s *MissionService) Status() (*MissionStatus, error) {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()
	if d == nil {
		return nil, ErrNotStarted
	}
	return s.status(d), nil
}

func (s *MissionService) status(d *mission.Dispatcher) *MissionStatus {
	run := d.Run()
	state := d.Current()

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()

	st := &MissionStatus{
		RunID:       run.ID.String(),
		Task:        run.Task,
		State:       string(state),
		Description: d.Mission().Describe(state),
		IsError:     d.Failed(),
		Operational: run.Operational(),
		Stopped:     stopped,
		StartedAt:   run.StartedAt,
		Elapsed:     s.deps.Clock.Since(run.StartedAt).Round(time.Second).String(),
	}
	if kind, ok := run.Failure(); ok {
		st.Failure = string(kind)
	}
	return st
}

// Stop останавливает источники событий миссии и дожидается их завершения
func (s *MissionService) Stop() error {
	s.mu.Lock()
	d := s.dispatcher
	if d == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	run := d.Run()
	err := run.Stop()
	final := d.Current()

	s.logger.WithFields(logrus.Fields{
		"run_id": run.ID.String(),
		"state":  final,
	}).Info("Миссия остановлена")
	metrics.SetMissionActive(run.Task, false)

	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		defer cancel()
		if jerr := s.journal.FinishRun(ctx, run.ID, string(final)); jerr != nil {
			s.logger.WithError(jerr).Warn("Не удалось записать завершение миссии в журнал")
		}
	}
	return err
}

func (s *MissionService) publishNodeStatus(status string) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(models.TopicNodesMonitor, models.NodeStatus{Status: status}); err != nil {
		s.logger.WithError(err).Warn("Не удалось опубликовать статус узла")
	}
}
