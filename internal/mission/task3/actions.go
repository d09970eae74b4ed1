package task3

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

// FrameLocalNED система координат уставок полётного контроллера
const FrameLocalNED = "LOCAL_NED"

// Mission миссия следования по линии
type Mission struct {
	deps   mission.Deps
	params config.MissionParams
	path   *LinePath
	logger *logrus.Logger
}

// New создаёт миссию следования по линии
func New(deps mission.Deps, params config.MissionParams) *Mission {
	return &Mission{
		deps:   deps,
		params: params,
		path:   &LinePath{},
		logger: deps.Logger,
	}
}

func (m *Mission) Task() int { return 3 }

func (m *Mission) Table() *fsm.Table { return Table }

func (m *Mission) Describe(s fsm.State) string { return descriptions[s] }

// Watchdogs: в таблице миссии нет аварийных переходов
func (m *Mission) Watchdogs() bool { return false }

func (m *Mission) Needs() []mission.Service {
	return []mission.Service{mission.ServiceFlight, mission.ServicePerception, mission.ServiceTelemetry}
}

// Path возвращает маршрут вдоль линии
func (m *Mission) Path() *LinePath {
	return m.path
}

// Handle выполняет действия при входе в новое состояние
func (m *Mission) Handle(d *mission.Dispatcher, tr fsm.Transition) {
	if tr.To != FollowingLine {
		return
	}

	run := d.Run()
	err := m.deps.Subscriber.Subscribe(models.TopicLinePoints, func(data []byte) {
		m.onLinePoints(run.Context(), data)
	})
	if err != nil {
		m.logger.WithError(err).Error("Не удалось подписаться на топик точек линии")
	}

	run.Go("follow-line", func(ctx context.Context) error {
		if err := m.deps.Motion.Takeoff(ctx, m.params.OperatingAltitude); err != nil {
			return err
		}
		return m.follow(ctx, run)
	})
}

func (m *Mission) onLinePoints(ctx context.Context, data []byte) {
	if ctx.Err() != nil {
		return
	}

	var msg models.Path
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.WithError(err).Warn("Некорректное сообщение с точками линии")
		return
	}

	drone, err := m.deps.Telemetry.Pose(ctx)
	if err != nil {
		m.logger.WithError(err).Debug("Нет данных о позиции дрона")
		return
	}

	added := 0
	for _, pose := range msg.Poses {
		if pose.FrameID == "" {
			pose.FrameID = msg.FrameID
		}
		inMap, err := m.deps.Perception.TransformPose(ctx, pose, models.FrameMap)
		if err != nil {
			m.logger.WithError(err).Warn("Не удалось перевести точку линии в СК map")
			continue
		}
		if m.path.Add(drone.Position, inMap) {
			added++
		}
	}
	if added > 0 {
		m.logger.WithFields(logrus.Fields{
			"added": added,
			"total": m.path.Len(),
		}).Debug("Маршрут вдоль линии дополнен")
	}

	if err := m.deps.Publisher.Publish(models.TopicGlobalPath, m.path.Message()); err != nil {
		m.logger.WithError(err).Warn("Не удалось опубликовать маршрут")
	}
}

// follow 20 раз в секунду отправляет уставку на очередную точку маршрута
// и переходит к следующей, когда дрон подлетел к текущей
func (m *Mission) follow(ctx context.Context, run *mission.Run) error {
	index := 0
	return watch.Loop(ctx, m.deps.Clock, watch.FollowPeriod, func(ctx context.Context) bool {
		target, ok := m.path.At(index)
		if !ok {
			return false
		}
		pose, err := m.deps.Telemetry.Pose(ctx)
		if err != nil {
			return false
		}
		drone := pose.Position
		drone.Z = 0

		setpoint := target.Pose.Position
		setpoint.Z = m.params.LineAltitude
		err = m.deps.Publisher.Publish(models.TopicSetpointRaw, models.PositionTarget{
			FrameID:         models.FrameMap,
			CoordinateFrame: FrameLocalNED,
			IgnoreVelocity:  true,
			IgnoreAccel:     true,
			Position:        setpoint,
			Yaw:             geo.YawBetween(drone, target.Pose.Position),
		})
		if err != nil {
			m.logger.WithError(err).Warn("Не удалось отправить уставку")
		}

		if geo.Distance(drone, target.Pose.Position) <= reachedRadius {
			index++
			m.logger.WithFields(logrus.Fields{
				"run_id": run.ID.String(),
				"point":  index,
			}).Debug("Точка линии достигнута")
		}
		return false
	})
}
