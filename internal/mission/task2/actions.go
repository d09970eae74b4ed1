package task2

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"task-manager-go/internal/config"
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/geo"
	"task-manager-go/internal/mission"
	"task-manager-go/internal/watch"
	"task-manager-go/pkg/models"
)

// Mission миссия с QR-кодами
type Mission struct {
	deps   mission.Deps
	params config.MissionParams
	store  *Store
	logger *logrus.Logger
}

// New создаёт миссию с QR-кодами
func New(deps mission.Deps, params config.MissionParams) *Mission {
	return &Mission{
		deps:   deps,
		params: params,
		store:  NewStore(params.Task2),
		logger: deps.Logger,
	}
}

func (m *Mission) Task() int { return 2 }

func (m *Mission) Table() *fsm.Table { return Table }

func (m *Mission) Describe(s fsm.State) string { return descriptions[s] }

func (m *Mission) Watchdogs() bool { return true }

func (m *Mission) Needs() []mission.Service {
	return []mission.Service{mission.ServiceFlight, mission.ServicePerception, mission.ServiceTelemetry}
}

// Store возвращает хранилище кодов и проёмов миссии
func (m *Mission) Store() *Store {
	return m.store
}

// Handle выполняет действия при входе в новое состояние
func (m *Mission) Handle(d *mission.Dispatcher, tr fsm.Transition) {
	switch tr.To {
	case Exploring:
		switch ev := tr.Event.(type) {
		case FlewThroughHole:
			m.goOn(d, tr.Seq, ev.QrIndex)
		default:
			m.start(d, tr.Seq)
		}
	case FlyingIntoHole:
		decision := decisionOf(tr.Event)
		m.flyIntoHole(d, tr.Seq, decision.Hole, decision.QrIndex)
	case FlyingToLandingPoint:
		m.flyToLandingPoint(d, tr.Seq, decisionOf(tr.Event).LandingPoint)
	case Landing:
		m.land(d)
	}
}

// start подключает источники событий и поднимает дрона
func (m *Mission) start(d *mission.Dispatcher, seq uint64) {
	run := d.Run()

	err := m.deps.Subscriber.Subscribe(models.TopicQRCodes, func(data []byte) {
		m.onQrCodes(d, data)
	})
	if err != nil {
		m.logger.WithError(err).Error("Не удалось подписаться на топик QR-кодов")
	}

	holes := &watch.CountWatcher{
		Name:  "holes",
		Count: m.deps.Perception.CountHoles,
		Fetch: m.deps.Perception.Holes,
		OnNew: func(_ context.Context, all, fresh []models.DetectedObject) {
			m.onNewHoles(d, all, fresh)
		},
		Logger: m.logger,
	}
	run.Go("hole-watcher", func(ctx context.Context) error {
		return holes.Run(ctx, m.deps.Clock, run.Alive)
	})

	run.Go("start-exploring", func(ctx context.Context) error {
		if err := m.deps.Motion.Takeoff(ctx, m.params.OperatingAltitude); err != nil {
			return err
		}
		if !d.Still(seq) {
			return nil
		}
		return m.lookAround(ctx, d, seq)
	})
}

// goOn переходит в следующую комнату после пролёта сквозь проём
func (m *Mission) goOn(d *mission.Dispatcher, seq uint64, qrIndex int) {
	m.store.PassRoom(qrIndex)
	d.Report("RoomPassed", "Комната пройдена", map[string]interface{}{
		"rooms": m.store.PassedRooms(),
	})

	d.Run().Go("go-on-exploring", func(ctx context.Context) error {
		if err := m.deps.Walls.SetWallsEnabled(ctx, true); err != nil {
			return err
		}
		return m.lookAround(ctx, d, seq)
	})
}

// lookAround осматривает комнату на низкой и рабочей высоте и запускает
// исследование, если состояние за это время не сменилось
func (m *Mission) lookAround(ctx context.Context, d *mission.Dispatcher, seq uint64) error {
	for _, altitude := range []float64{m.params.LowAltitude, m.params.OperatingAltitude} {
		if err := m.deps.Motion.SpinAndWait(ctx, 1, altitude, m.params.AngularVelocity); err != nil {
			return err
		}
		if !d.Still(seq) {
			return nil
		}
	}
	return m.deps.Motion.SetExploration(ctx, true)
}

func (m *Mission) onQrCodes(d *mission.Dispatcher, data []byte) {
	run := d.Run()
	if !run.Alive() {
		return
	}

	var msg models.QRCodeArray
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.WithError(err).Warn("Некорректное сообщение с QR-кодами")
		return
	}

	for _, code := range msg.QRCodes {
		stamped, err := m.deps.Perception.TransformPoint(run.Context(), models.PointStamped{
			FrameID: code.FrameID,
			Point:   code.Position,
		}, models.FrameMap)
		if err != nil {
			m.logger.WithError(err).WithField("data", code.Data).Warn("Не удалось перевести позицию QR-кода в СК map")
			continue
		}

		qr := NewQr(stamped.Point, code.Data, m.params.Task2.MaxFloorZ)
		index, fresh := m.store.Observe(qr)
		if !fresh {
			continue
		}
		if !qr.OnFloor {
			if hole, ok := m.store.FindConnectedHole(qr); ok {
				m.store.Link(index, hole.ID)
			}
		}

		d.Report("QrFound", "Обнаружен новый QR-код", map[string]interface{}{
			"index":    index,
			"content":  qr.Content,
			"position": qr.Position,
			"on_floor": qr.OnFloor,
		})
		d.Dispatch(QrFound{Index: index, QR: qr, Decision: m.store.DecideQr(index)})
	}
}

func (m *Mission) onNewHoles(d *mission.Dispatcher, all, fresh []models.DetectedObject) {
	m.store.SetHoles(all)
	for _, hole := range fresh {
		if qrIndex, ok := m.store.FindConnectedQr(hole); ok {
			m.store.Link(qrIndex, hole.ID)
		}
		d.Report("HoleFound", "Обнаружен новый проём", map[string]interface{}{
			"id":       hole.ID,
			"position": hole.Pose.Position,
		})
		d.Dispatch(HoleFound{Hole: hole, Decision: m.store.DecideHole(hole)})
	}
}

func (m *Mission) flyIntoHole(d *mission.Dispatcher, seq uint64, hole models.DetectedObject, qrIndex int) {
	run := d.Run()
	run.Go("fly-into-hole", func(ctx context.Context) error {
		if err := m.deps.Motion.SetExploration(ctx, false); err != nil {
			return err
		}
		passed, err := mission.FlyThroughAperture(ctx, m.deps, run, hole, mission.Approach{
			Standoff:   m.params.FlyingIntoHolePassDistance,
			Arming:     m.params.FlyingIntoHoleDetectionDistance,
			Completion: m.params.FlyingIntoHoleDetectionPassDistance,
		})
		if err != nil || !passed {
			return err
		}
		d.DispatchAt(seq, FlewThroughHole{QrIndex: qrIndex})
		return nil
	})
}

// flyToLandingPoint продолжает полёт и после аварии
func (m *Mission) flyToLandingPoint(d *mission.Dispatcher, seq uint64, point models.Point) {
	d.Run().Go("fly-to-landing-point", func(ctx context.Context) error {
		if err := m.deps.Motion.SetExploration(ctx, false); err != nil {
			return err
		}
		if err := m.deps.Motion.CancelAllGoals(ctx); err != nil {
			return err
		}
		pose, err := m.deps.Telemetry.Pose(ctx)
		if err != nil {
			return err
		}

		goal := models.PoseStamped{
			FrameID: models.FrameMap,
			Pose: models.Pose{
				Position:    point,
				Orientation: geo.OrientationToward(pose.Position, point),
			},
		}
		return m.deps.Navigator.SendGoal(ctx, goal, func() {
			d.DispatchAt(seq, ArrivedAtLandingPoint)
		})
	})
}

func (m *Mission) land(d *mission.Dispatcher) {
	d.Run().Go("land", func(ctx context.Context) error {
		if err := m.deps.Motion.CancelAllGoals(ctx); err != nil {
			return err
		}
		return m.deps.Motion.Land(ctx)
	})
}
