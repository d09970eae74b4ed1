package mission

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/fsm"
	"task-manager-go/pkg/models"
)

// Motion команды контроллеру полёта. Блокирующие вызовы повторяются
// до успеха или отмены контекста.
type Motion interface {
	// Takeoff блокирует, пока дрон не наберёт высоту altitude
	Takeoff(ctx context.Context, altitude float64) error
	// Land блокирует, пока дрон не приземлится
	Land(ctx context.Context) error
	// Spin запускает вращение на laps оборотов и не ждёт его окончания
	Spin(ctx context.Context, laps int, altitude, angularVelocity float64) error
	// SpinAndWait как Spin, но ждёт окончания вращения
	SpinAndWait(ctx context.Context, laps int, altitude, angularVelocity float64) error
	StopSpin(ctx context.Context) error
	// CancelAllGoals отменяет все цели навигации и ждёт около секунды
	CancelAllGoals(ctx context.Context) error
	// SetExploration включает или приостанавливает автономное исследование
	SetExploration(ctx context.Context, enabled bool) error
}

// Navigator отправка целей планировщику
type Navigator interface {
	// SendGoal отправляет цель. Если onDone не nil, вызов ждёт достижения
	// цели, вызывает onDone и только потом возвращается; при отмене ctx
	// возвращается ошибка контекста. С nil возвращается сразу после отправки.
	SendGoal(ctx context.Context, goal models.PoseStamped, onDone func()) error
}

// Walls виртуальные стены карты планировщика
type Walls interface {
	AddWall(ctx context.Context, aperture models.DetectedObject) error
	SetWallsEnabled(ctx context.Context, enabled bool) error
}

// Perception запросы к узлу восприятия
type Perception interface {
	// NearestHole возвращает ближайший проём или nil, если проёмов ещё нет
	NearestHole(ctx context.Context) (*models.DetectedObject, error)
	CountHoles(ctx context.Context) (int, error)
	Holes(ctx context.Context) ([]models.DetectedObject, error)
	CountCubes(ctx context.Context) (int, error)
	Cubes(ctx context.Context) ([]models.DetectedObject, error)
	TransformPoint(ctx context.Context, p models.PointStamped, frame string) (models.PointStamped, error)
	TransformPose(ctx context.Context, p models.PoseStamped, frame string) (models.PoseStamped, error)
}

// Telemetry последние показания дрона. Методы блокируют до первого сообщения.
type Telemetry interface {
	Pose(ctx context.Context) (models.Pose, error)
	BatteryVoltage(ctx context.Context) (float64, error)
}

// Publisher публикация сообщений в топики
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// Subscriber подписка на топики
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
}

// Journal запись хода миссии для последующего анализа. Миссия журнал не читает.
type Journal interface {
	BeginRun(ctx context.Context, id uuid.UUID, task int) error
	Record(ctx context.Context, id uuid.UUID, rec Record) error
	FinishRun(ctx context.Context, id uuid.UUID, finalState string) error
}

// Record запись журнала
type Record struct {
	Kind    string
	From    string
	To      string
	Event   string
	Message string
	IsError bool
}

// Service внешний сервис, готовность которого проверяется перед стартом
type Service string

// Внешние сервисы
const (
	ServiceFlight     Service = "flight"
	ServicePerception Service = "perception"
	ServiceTelemetry  Service = "telemetry"
)

// Probe проверка готовности внешнего сервиса
type Probe interface {
	WaitReady(ctx context.Context) error
}

// Deps внешние зависимости миссий
type Deps struct {
	Motion     Motion
	Navigator  Navigator
	Walls      Walls
	Perception Perception
	Telemetry  Telemetry
	Publisher  Publisher
	Subscriber Subscriber
	Clock      clock.Clock
	Logger     *logrus.Logger
}

// Mission описание одной миссии: таблица переходов и действия при смене состояний
type Mission interface {
	Task() int
	Table() *fsm.Table
	// Describe возвращает человекочитаемое описание состояния для топика статуса
	Describe(s fsm.State) string
	// Watchdogs сообщает, нужны ли сторожевые таймеры заряда и времени
	Watchdogs() bool
	// Needs перечисляет сервисы, которых нужно дождаться перед стартом
	Needs() []Service
	// Handle выполняет действия перехода. Вызывается вне блокировки автомата.
	Handle(d *Dispatcher, tr fsm.Transition)
}
