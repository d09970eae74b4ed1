// Package missiontest содержит фейковые реализации внешних сервисов для тестов миссий.
package missiontest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"task-manager-go/internal/mission"
	"task-manager-go/pkg/models"
)

// Call вызов внешнего сервиса
type Call struct {
	Name string
	Args []interface{}
}

// Recorder запоминает вызовы
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(name string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Name: name, Args: args})
}

// Calls возвращает копию вызовов
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Names возвращает имена вызовов по порядку
func (r *Recorder) Names() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Name
	}
	return out
}

// Count возвращает количество вызовов name
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Motion фейковый контроллер полёта
type Motion struct {
	Recorder
}

func (m *Motion) Takeoff(_ context.Context, altitude float64) error {
	m.record("Takeoff", altitude)
	return nil
}

func (m *Motion) Land(context.Context) error {
	m.record("Land")
	return nil
}

func (m *Motion) Spin(_ context.Context, laps int, altitude, angularVelocity float64) error {
	m.record("Spin", laps, altitude, angularVelocity)
	return nil
}

func (m *Motion) SpinAndWait(_ context.Context, laps int, altitude, angularVelocity float64) error {
	m.record("SpinAndWait", laps, altitude, angularVelocity)
	return nil
}

func (m *Motion) StopSpin(context.Context) error {
	m.record("StopSpin")
	return nil
}

func (m *Motion) CancelAllGoals(context.Context) error {
	m.record("CancelAllGoals")
	return nil
}

func (m *Motion) SetExploration(_ context.Context, enabled bool) error {
	m.record("SetExploration", enabled)
	return nil
}

// Navigator фейковый планировщик: цели запоминаются, завершение вызывается из теста.
// SendGoal с onDone блокируется до Complete или отмены контекста.
type Navigator struct {
	mu      sync.Mutex
	goals   []models.PoseStamped
	onDone  []func()
	reached []chan struct{}
}

func (n *Navigator) SendGoal(ctx context.Context, goal models.PoseStamped, onDone func()) error {
	reached := make(chan struct{})
	n.mu.Lock()
	n.goals = append(n.goals, goal)
	n.onDone = append(n.onDone, onDone)
	n.reached = append(n.reached, reached)
	n.mu.Unlock()

	if onDone == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-reached:
		return nil
	}
}

// Goals возвращает отправленные цели
func (n *Navigator) Goals() []models.PoseStamped {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.PoseStamped, len(n.goals))
	copy(out, n.goals)
	return out
}

// Complete сообщает о достижении последней цели. onDone вызывается
// синхронно, затем ожидающий SendGoal возвращается.
func (n *Navigator) Complete() {
	n.mu.Lock()
	if len(n.goals) == 0 {
		n.mu.Unlock()
		return
	}
	last := len(n.goals) - 1
	done, reached := n.onDone[last], n.reached[last]
	n.onDone[last] = nil
	n.mu.Unlock()

	if done != nil {
		done()
		close(reached)
	}
}

// Waiting сообщает, ждёт ли вызывающий достижения последней цели
func (n *Navigator) Waiting() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.onDone) > 0 && n.onDone[len(n.onDone)-1] != nil
}

// Walls фейковые виртуальные стены
type Walls struct {
	Recorder
}

func (w *Walls) AddWall(_ context.Context, aperture models.DetectedObject) error {
	w.record("AddWall", aperture.ID)
	return nil
}

func (w *Walls) SetWallsEnabled(_ context.Context, enabled bool) error {
	w.record("SetWallsEnabled", enabled)
	return nil
}

// Perception фейковый узел восприятия. Преобразования систем координат
// только подменяют имя СК.
type Perception struct {
	mu      sync.Mutex
	nearest *models.DetectedObject
	holes   []models.DetectedObject
	cubes   []models.DetectedObject
}

// SetNearest задаёт ближайший проём
func (p *Perception) SetNearest(hole *models.DetectedObject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nearest = hole
}

// SetHoles задаёт обнаруженные проёмы
func (p *Perception) SetHoles(holes ...models.DetectedObject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holes = append([]models.DetectedObject(nil), holes...)
}

// SetCubes задаёт обнаруженные кубы
func (p *Perception) SetCubes(cubes ...models.DetectedObject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cubes = append([]models.DetectedObject(nil), cubes...)
}

func (p *Perception) NearestHole(context.Context) (*models.DetectedObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nearest, nil
}

func (p *Perception) CountHoles(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.holes), nil
}

func (p *Perception) Holes(context.Context) ([]models.DetectedObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.DetectedObject(nil), p.holes...), nil
}

func (p *Perception) CountCubes(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cubes), nil
}

func (p *Perception) Cubes(context.Context) ([]models.DetectedObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.DetectedObject(nil), p.cubes...), nil
}

func (p *Perception) TransformPoint(_ context.Context, pt models.PointStamped, frame string) (models.PointStamped, error) {
	pt.FrameID = frame
	return pt, nil
}

func (p *Perception) TransformPose(_ context.Context, pose models.PoseStamped, frame string) (models.PoseStamped, error) {
	pose.FrameID = frame
	return pose, nil
}

// Telemetry фейковая телеметрия
type Telemetry struct {
	mu      sync.Mutex
	pose    models.Pose
	path    []models.Point
	voltage float64
}

// SetPath задаёт маршрут: каждый запрос позиции возвращает следующую точку,
// последняя точка повторяется.
func (t *Telemetry) SetPath(points ...models.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.path = append([]models.Point(nil), points...)
}

// SetPosition задаёт позицию дрона
func (t *Telemetry) SetPosition(p models.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.path = nil
	t.pose = models.Pose{Position: p, Orientation: models.IdentityQuaternion()}
}

// SetVoltage задаёт напряжение аккумулятора
func (t *Telemetry) SetVoltage(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voltage = v
}

func (t *Telemetry) Pose(context.Context) (models.Pose, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.path) > 0 {
		t.pose = models.Pose{Position: t.path[0], Orientation: models.IdentityQuaternion()}
		if len(t.path) > 1 {
			t.path = t.path[1:]
		}
	}
	return t.pose, nil
}

func (t *Telemetry) BatteryVoltage(context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.voltage, nil
}

// Message опубликованное сообщение
type Message struct {
	Topic   string
	Payload interface{}
}

// Bus фейковый брокер топиков
type Bus struct {
	mu       sync.Mutex
	messages []Message
	handlers map[string][]func([]byte)
}

func (b *Bus) Publish(topic string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, Message{Topic: topic, Payload: payload})
	return nil
}

func (b *Bus) Subscribe(topic string, handler func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string][]func([]byte))
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Subscribed сообщает, есть ли подписчики топика
func (b *Bus) Subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[topic]) > 0
}

// Deliver доставляет сообщение подписчикам топика
func (b *Bus) Deliver(topic string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.mu.Lock()
	handlers := make([]func([]byte), len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Published возвращает сообщения, опубликованные в топик
func (b *Bus) Published(topic string) []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []interface{}
	for _, m := range b.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Journal фейковый журнал миссий
type Journal struct {
	mu      sync.Mutex
	records []mission.Record
	runs    map[uuid.UUID]string
}

func (j *Journal) BeginRun(_ context.Context, id uuid.UUID, _ int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runs == nil {
		j.runs = make(map[uuid.UUID]string)
	}
	j.runs[id] = ""
	return nil
}

func (j *Journal) Record(_ context.Context, _ uuid.UUID, rec mission.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *Journal) FinishRun(_ context.Context, id uuid.UUID, finalState string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runs == nil {
		j.runs = make(map[uuid.UUID]string)
	}
	j.runs[id] = finalState
	return nil
}

// Records возвращает записи журнала
func (j *Journal) Records() []mission.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]mission.Record(nil), j.records...)
}

// FinalState возвращает итоговое состояние выполнения
func (j *Journal) FinalState(id uuid.UUID) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.runs[id]
	return s, ok
}

// Env набор фейков и собранные из них зависимости
type Env struct {
	Motion     *Motion
	Navigator  *Navigator
	Walls      *Walls
	Perception *Perception
	Telemetry  *Telemetry
	Bus        *Bus
	Journal    *Journal
	Clock      *clock.Mock
	Logger     *logrus.Logger
	Hook       *test.Hook
}

// NewEnv создаёт фейки с мок-часами
func NewEnv() *Env {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &Env{
		Motion:     &Motion{},
		Navigator:  &Navigator{},
		Walls:      &Walls{},
		Perception: &Perception{},
		Telemetry:  &Telemetry{},
		Bus:        &Bus{},
		Journal:    &Journal{},
		Clock:      clock.NewMock(),
		Logger:     logger,
		Hook:       hook,
	}
}

// Deps возвращает зависимости миссий
func (e *Env) Deps() mission.Deps {
	return mission.Deps{
		Motion:     e.Motion,
		Navigator:  e.Navigator,
		Walls:      e.Walls,
		Perception: e.Perception,
		Telemetry:  e.Telemetry,
		Publisher:  e.Bus,
		Subscriber: e.Bus,
		Clock:      e.Clock,
		Logger:     e.Logger,
	}
}

// Start создаёт выполнение и диспетчер миссии m
func (e *Env) Start(m mission.Mission) *mission.Dispatcher {
	run := mission.NewRun(context.Background(), m.Task(), e.Clock.Now(), e.Logger)
	reporter := mission.NewReporter(e.Bus, e.Journal, e.Clock, e.Logger)
	return mission.NewDispatcher(run, m, reporter, e.Logger)
}
