package mission

import (
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/fsm"
)

// Dispatcher связывает автомат миссии с её действиями.
//
// Dispatch применяет событие под блокировкой автомата, затем вне блокировки
// сообщает о переходе и вызывает действия миссии в горутине источника события.
// Длительные действия миссия запускает сама через Run.Go.
type Dispatcher struct {
	machine   *fsm.Machine
	run       *Run
	mission   Mission
	reporter  *Reporter
	logger    *logrus.Logger
	observers []func(fsm.Transition)
}

// NewDispatcher создаёт диспетчер для выполнения run миссии m
func NewDispatcher(run *Run, m Mission, reporter *Reporter, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		machine:  fsm.NewMachine(m.Table()),
		run:      run,
		mission:  m,
		reporter: reporter,
		logger:   logger,
	}
}

// Observe добавляет наблюдателя переходов. Вызывать до первого события.
func (d *Dispatcher) Observe(fn func(fsm.Transition)) {
	d.observers = append(d.observers, fn)
}

// Dispatch применяет событие и выполняет действия перехода
func (d *Dispatcher) Dispatch(ev fsm.Event) fsm.Transition {
	tr := d.machine.Apply(ev)
	d.after(tr)
	return tr
}

// DispatchAt применяет событие, только если с перехода seq состояние не менялось
func (d *Dispatcher) DispatchAt(seq uint64, ev fsm.Event) (fsm.Transition, bool) {
	tr, ok := d.machine.ApplyAt(seq, ev)
	if !ok {
		d.logger.WithFields(logrus.Fields{
			"run_id": d.run.ID.String(),
			"event":  ev.Type(),
			"state":  tr.To,
		}).Debug("Событие устарело: состояние уже сменилось")
		return tr, false
	}
	d.after(tr)
	return tr, true
}

func (d *Dispatcher) after(tr fsm.Transition) {
	d.reporter.Transition(d.run, tr, d.mission.Describe(tr.To))
	for _, fn := range d.observers {
		fn(tr)
	}
	if tr.Err != nil || !tr.Changed() {
		return
	}
	d.mission.Handle(d, tr)
}

// Fail обрабатывает аварийное событие. Только первая авария сбрасывает
// признак работоспособности и подаётся на автомат, остальные игнорируются.
func (d *Dispatcher) Fail(kind FailureKind) bool {
	if !d.run.Fail(kind) {
		d.logger.WithField("kind", kind).Debug("Повторное аварийное событие проигнорировано")
		return false
	}
	d.reporter.Failure(d.run, kind)
	d.Dispatch(Failure{Kind: kind})
	return true
}

// Report сообщает о доменном событии миссии
func (d *Dispatcher) Report(name, message string, details map[string]interface{}) {
	d.reporter.Event(d.run, name, message, details)
}

// Run возвращает выполнение миссии
func (d *Dispatcher) Run() *Run {
	return d.run
}

// Current возвращает текущее состояние
func (d *Dispatcher) Current() fsm.State {
	return d.machine.Current()
}

// Snapshot возвращает текущее состояние и номер последнего перехода
func (d *Dispatcher) Snapshot() (fsm.State, uint64) {
	return d.machine.Snapshot()
}

// Is сообщает, находится ли миссия в состоянии s
func (d *Dispatcher) Is(s fsm.State) bool {
	return d.machine.Is(s)
}

// Still сообщает, что с перехода seq состояние не менялось и миссия работоспособна
func (d *Dispatcher) Still(seq uint64) bool {
	return d.run.Alive() && d.machine.Still(seq)
}

// Failed сообщает, что миссия в состоянии ошибки
func (d *Dispatcher) Failed() bool {
	return d.machine.Failed()
}

// Mission возвращает выполняемую миссию
func (d *Dispatcher) Mission() Mission {
	return d.mission
}
