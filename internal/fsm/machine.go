package fsm

import (
	"errors"
	"sync"
)

// Transition результат применения события к автомату
type Transition struct {
	Seq   uint64
	From  State
	To    State
	Event Event
	Err   error
}

// Changed сообщает, сменилось ли состояние
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Protocol сообщает, что событие не предусмотрено таблицей
func (t Transition) Protocol() bool {
	return t.Err != nil && !errors.Is(t.Err, ErrTerminal)
}

// Machine владеет текущим состоянием одной миссии.
// Состояние меняется только через Apply; мьютекс удерживается лишь на время
// вычисления и записи следующего состояния.
type Machine struct {
	table *Table

	mu    sync.Mutex
	state State
	seq   uint64
}

// NewMachine создаёт автомат в начальном состоянии таблицы
func NewMachine(table *Table) *Machine {
	return &Machine{
		table: table,
		state: table.Initial(),
	}
}

// Apply атомарно применяет событие. Seq увеличивается при каждой смене состояния.
func (m *Machine) Apply(ev Event) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	to, err := m.table.Next(from, ev)
	if to != from {
		m.state = to
		m.seq++
	}

	return Transition{
		Seq:   m.seq,
		From:  from,
		To:    to,
		Event: ev,
		Err:   err,
	}
}

// ApplyAt применяет событие, только если с перехода seq состояние не менялось.
// Источники, чьё событие относится к уже покинутому состоянию, получают false.
func (m *Machine) ApplyAt(seq uint64, ev Event) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seq != seq {
		return Transition{Seq: m.seq, From: m.state, To: m.state, Event: ev}, false
	}

	from := m.state
	to, err := m.table.Next(from, ev)
	if to != from {
		m.state = to
		m.seq++
	}

	return Transition{Seq: m.seq, From: from, To: to, Event: ev, Err: err}, true
}

// Current возвращает текущее состояние
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot возвращает текущее состояние и номер последнего перехода
func (m *Machine) Snapshot() (State, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.seq
}

// Is сообщает, находится ли автомат в состоянии s
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Still сообщает, что с момента перехода seq состояние не менялось
func (m *Machine) Still(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq == seq
}

// Failed сообщает, что автомат в состоянии ошибки
func (m *Machine) Failed() bool {
	return m.Is(m.table.ErrorState())
}

// Table возвращает таблицу переходов автомата
func (m *Machine) Table() *Table {
	return m.table
}
