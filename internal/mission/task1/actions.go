package task1

import (
	"context"

	"github.com/sirupsen/logrus"

	"task-manager-go/internal/config"
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/mission"
	"task-manager-go/internal/watch"
	"task-manager-go/pkg/models"
)

// Mission миссия поиска кубов
type Mission struct {
	deps   mission.Deps
	params config.MissionParams
	logger *logrus.Logger
}

// New создаёт миссию поиска кубов
func New(deps mission.Deps, params config.MissionParams) *Mission {
	return &Mission{
		deps:   deps,
		params: params,
		logger: deps.Logger,
	}
}

func (m *Mission) Task() int { return 1 }

func (m *Mission) Table() *fsm.Table { return Table }

func (m *Mission) Describe(s fsm.State) string { return descriptions[s] }

func (m *Mission) Watchdogs() bool { return true }

func (m *Mission) Needs() []mission.Service {
	return []mission.Service{mission.ServiceFlight, mission.ServicePerception, mission.ServiceTelemetry}
}

func (m *Mission) approach() mission.Approach {
	return mission.Approach{
		Standoff:   m.params.FlyingIntoHolePassDistance,
		Arming:     m.params.FlyingIntoHoleDetectionDistance,
		Completion: m.params.FlyingIntoHoleDetectionPassDistance,
	}
}

// Handle выполняет действия при входе в новое состояние
func (m *Mission) Handle(d *mission.Dispatcher, tr fsm.Transition) {
	switch tr.To {
	case LookingForEntry:
		m.watchCubes(d)
		m.lookForEntry(d, tr.Seq)
	case FlyingInside:
		if ev, ok := tr.Event.(EntryFound); ok {
			m.flyInside(d, tr.Seq, ev.Entry)
		}
	case Exploring:
		m.explore(d, tr.Seq)
	case ReturningToStartPoint:
		m.returnToStart(d, tr)
	case Landing:
		m.land(d)
	}
}

// watchCubes публикует координаты каждого нового куба и сообщает
// о находке всех кубов, как только дрон исследует здание.
func (m *Mission) watchCubes(d *mission.Dispatcher) {
	cubes := &watch.CountWatcher{
		Name:  "cubes",
		Count: m.deps.Perception.CountCubes,
		Fetch: m.deps.Perception.Cubes,
		OnNew: func(_ context.Context, all, fresh []models.DetectedObject) {
			for _, cube := range fresh {
				if err := m.deps.Publisher.Publish(models.TopicObjectCoordinates, cube.Pose.Position); err != nil {
					m.logger.WithError(err).Warn("Не удалось опубликовать координаты куба")
				}
				d.Report("CubeFound", "Обнаружен новый куб", map[string]interface{}{
					"id":       cube.ID,
					"position": cube.Pose.Position,
					"total":    len(all),
				})
			}
		},
		Logger: m.logger,
	}

	d.Run().Go("cube-watcher", func(ctx context.Context) error {
		return watch.Loop(ctx, m.deps.Clock, watch.DiscoveryPeriod, func(ctx context.Context) bool {
			if !d.Run().Alive() {
				return true
			}
			if err := cubes.Step(ctx); err != nil {
				m.logger.WithError(err).Debug("Не удалось опросить узел восприятия")
				return false
			}
			if cubes.Known() < m.params.Task1.CubesCount {
				return false
			}
			state, seq := d.Snapshot()
			if state != Exploring {
				return false
			}
			d.DispatchAt(seq, AllCubesFound)
			return true
		})
	})
}

func (m *Mission) lookForEntry(d *mission.Dispatcher, seq uint64) {
	run := d.Run()

	run.Go("entry-search", func(ctx context.Context) error {
		var entry *models.DetectedObject
		err := watch.Loop(ctx, m.deps.Clock, watch.DiscoveryPeriod, func(ctx context.Context) bool {
			if !run.Alive() {
				return true
			}
			hole, err := m.deps.Perception.NearestHole(ctx)
			if err != nil {
				m.logger.WithError(err).Debug("Не удалось запросить ближайший проём")
				return false
			}
			entry = hole
			return hole != nil
		})
		if err != nil {
			return err
		}
		if err := m.deps.Motion.StopSpin(ctx); err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		d.DispatchAt(seq, EntryFound{Entry: *entry})
		return nil
	})

	run.Go("takeoff", func(ctx context.Context) error {
		return m.deps.Motion.Takeoff(ctx, m.params.OperatingAltitude)
	})
}

func (m *Mission) flyInside(d *mission.Dispatcher, seq uint64, entry models.DetectedObject) {
	run := d.Run()
	run.Go("fly-inside", func(ctx context.Context) error {
		passed, err := mission.FlyThroughAperture(ctx, m.deps, run, entry, m.approach())
		if err != nil || !passed {
			return err
		}
		d.DispatchAt(seq, FlewInside)
		return nil
	})
}

func (m *Mission) explore(d *mission.Dispatcher, seq uint64) {
	d.Run().Go("explore", func(ctx context.Context) error {
		if err := m.deps.Walls.SetWallsEnabled(ctx, true); err != nil {
			return err
		}
		if err := m.deps.Motion.SpinAndWait(ctx, 1, m.params.OperatingAltitude, m.params.AngularVelocity); err != nil {
			return err
		}
		if !d.Still(seq) {
			return nil
		}
		return m.deps.Motion.SetExploration(ctx, true)
	})
}

// returnToStart выполняется и после аварии, поэтому проверяет только
// отмену контекста выполнения.
func (m *Mission) returnToStart(d *mission.Dispatcher, tr fsm.Transition) {
	d.Run().Go("return-to-start", func(ctx context.Context) error {
		if tr.From == Exploring {
			if err := m.deps.Motion.SetExploration(ctx, false); err != nil {
				return err
			}
		}
		if err := m.deps.Walls.SetWallsEnabled(ctx, false); err != nil {
			return err
		}
		if err := m.deps.Motion.CancelAllGoals(ctx); err != nil {
			return err
		}
		if err := m.deps.Motion.StopSpin(ctx); err != nil {
			return err
		}

		home := models.PoseStamped{
			FrameID: models.FrameMap,
			Pose:    models.Pose{Orientation: models.IdentityQuaternion()},
		}
		return m.deps.Navigator.SendGoal(ctx, home, func() {
			d.DispatchAt(tr.Seq, ArrivedAtStart)
		})
	})
}

func (m *Mission) land(d *mission.Dispatcher) {
	d.Run().Go("land", func(ctx context.Context) error {
		return m.deps.Motion.Land(ctx)
	})
}
