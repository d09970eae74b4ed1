package fsm

import (
	"errors"
	"fmt"
)

// State идентификатор состояния миссии
type State string

// EventType идентификатор типа события
type EventType string

// Event событие, подаваемое на вход автомата
type Event interface {
	Type() EventType
}

// Signal событие без полезной нагрузки
type Signal EventType

// Type возвращает тип события
func (s Signal) Type() EventType {
	return EventType(s)
}

// Guard выбирает целевое состояние среди Rule.To по содержимому события
type Guard func(ev Event) State

// Rule строка таблицы переходов
type Rule struct {
	From  []State
	On    EventType
	To    []State
	Guard Guard
}

var (
	// ErrNoTransition переход для пары (состояние, событие) не определён
	ErrNoTransition = errors.New("no transition")
	// ErrGuardTarget guard выбрал состояние вне списка допустимых
	ErrGuardTarget = errors.New("guard chose an undeclared target")
	// ErrTerminal автомат уже в состоянии ошибки
	ErrTerminal = errors.New("machine is in the error state")
)

type key struct {
	from State
	on   EventType
}

// Table неизменяемая таблица переходов одной миссии
type Table struct {
	name       string
	initial    State
	errorState State
	rules      map[key]Rule
	states     []State
}

// NewTable собирает таблицу переходов и проверяет её согласованность
func NewTable(name string, initial, errorState State, rules ...Rule) (*Table, error) {
	t := &Table{
		name:       name,
		initial:    initial,
		errorState: errorState,
		rules:      make(map[key]Rule),
	}

	seen := map[State]bool{}
	addState := func(s State) {
		if !seen[s] {
			seen[s] = true
			t.states = append(t.states, s)
		}
	}
	addState(initial)

	for i, r := range rules {
		if len(r.From) == 0 || len(r.To) == 0 {
			return nil, fmt.Errorf("table %s: rule %d on %s has no source or target", name, i, r.On)
		}
		if len(r.To) > 1 && r.Guard == nil {
			return nil, fmt.Errorf("table %s: rule %d on %s has several targets but no guard", name, i, r.On)
		}
		for _, from := range r.From {
			if from == errorState {
				return nil, fmt.Errorf("table %s: the error state %s cannot have outgoing rules", name, from)
			}
			k := key{from: from, on: r.On}
			if _, ok := t.rules[k]; ok {
				return nil, fmt.Errorf("table %s: duplicate rule for %s on %s", name, from, r.On)
			}
			t.rules[k] = r
			addState(from)
		}
		for _, to := range r.To {
			addState(to)
		}
	}
	addState(errorState)

	return t, nil
}

// MustTable как NewTable, но паникует на несогласованной таблице.
// Используется для таблиц, объявленных на уровне пакета.
func MustTable(name string, initial, errorState State, rules ...Rule) *Table {
	t, err := NewTable(name, initial, errorState, rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name возвращает имя таблицы
func (t *Table) Name() string { return t.name }

// Initial возвращает начальное состояние
func (t *Table) Initial() State { return t.initial }

// ErrorState возвращает терминальное состояние ошибки
func (t *Table) ErrorState() State { return t.errorState }

// States возвращает все состояния, упомянутые в таблице
func (t *Table) States() []State {
	out := make([]State, len(t.states))
	copy(out, t.states)
	return out
}

// Handles сообщает, есть ли в таблице правило для пары (состояние, тип события)
func (t *Table) Handles(from State, on EventType) bool {
	_, ok := t.rules[key{from: from, on: on}]
	return ok
}

// Next вычисляет следующее состояние. Функция чистая: при отсутствии правила
// или некорректном выборе guard возвращается состояние ошибки и ошибка протокола.
func (t *Table) Next(from State, ev Event) (State, error) {
	if from == t.errorState {
		return t.errorState, ErrTerminal
	}

	r, ok := t.rules[key{from: from, on: ev.Type()}]
	if !ok {
		return t.errorState, fmt.Errorf("%w: %s on %s", ErrNoTransition, from, ev.Type())
	}

	if r.Guard == nil {
		return r.To[0], nil
	}

	to := r.Guard(ev)
	for _, allowed := range r.To {
		if to == allowed {
			return to, nil
		}
	}
	return t.errorState, fmt.Errorf("%w: %s on %s chose %s", ErrGuardTarget, from, ev.Type(), to)
}
