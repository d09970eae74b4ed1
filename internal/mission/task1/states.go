// Package task1 миссия поиска кубов: найти вход в здание, влететь внутрь,
// исследовать помещения до обнаружения всех кубов и вернуться в точку старта.
package task1

import (
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/mission"
	"task-manager-go/pkg/models"
)

// Состояния миссии
const (
	WaitingForCommand     fsm.State = "WaitingForCommand"
	LookingForEntry       fsm.State = "LookingForEntry"
	FlyingInside          fsm.State = "FlyingInside"
	Exploring             fsm.State = "Exploring"
	ReturningToStartPoint fsm.State = "ReturningToStartPoint"
	Landing               fsm.State = "Landing"
	Error                 fsm.State = "Error"
)

// События миссии
const (
	EventEntryFound     fsm.EventType = "EntryFound"
	EventFlewInside     fsm.EventType = "FlewInside"
	EventAllCubesFound  fsm.EventType = "AllCubesFound"
	EventArrivedAtStart fsm.EventType = "ArrivedAtStart"
)

// EntryFound найден проём для влёта в здание
type EntryFound struct {
	Entry models.DetectedObject
}

// Type возвращает тип события
func (EntryFound) Type() fsm.EventType { return EventEntryFound }

var (
	// FlewInside дрон пролетел сквозь входной проём
	FlewInside = fsm.Signal(EventFlewInside)
	// AllCubesFound обнаружены все кубы
	AllCubesFound = fsm.Signal(EventAllCubesFound)
	// ArrivedAtStart дрон долетел до точки старта
	ArrivedAtStart = fsm.Signal(EventArrivedAtStart)
)

// Table таблица переходов миссии
var Table = fsm.MustTable("task1", WaitingForCommand, Error,
	fsm.Rule{From: []fsm.State{WaitingForCommand}, On: mission.EventStart, To: []fsm.State{LookingForEntry}},
	fsm.Rule{From: []fsm.State{LookingForEntry}, On: EventEntryFound, To: []fsm.State{FlyingInside}},
	fsm.Rule{From: []fsm.State{FlyingInside}, On: EventFlewInside, To: []fsm.State{Exploring}},
	fsm.Rule{From: []fsm.State{Exploring}, On: EventAllCubesFound, To: []fsm.State{ReturningToStartPoint}},
	fsm.Rule{From: []fsm.State{ReturningToStartPoint}, On: EventArrivedAtStart, To: []fsm.State{Landing}},

	fsm.Rule{From: []fsm.State{WaitingForCommand, LookingForEntry, Landing}, On: mission.EventFailure, To: []fsm.State{Landing}},
	fsm.Rule{From: []fsm.State{FlyingInside, Exploring, ReturningToStartPoint}, On: mission.EventFailure, To: []fsm.State{ReturningToStartPoint}},
)

var descriptions = map[fsm.State]string{
	WaitingForCommand:     "Дрон ожидает команды",
	LookingForEntry:       "Дрон ищет вход в здание",
	FlyingInside:          "Дрон влетает в здание",
	Exploring:             "Дрон исследует здание",
	ReturningToStartPoint: "Дрон возвращается в точку старта",
	Landing:               "Дрон приземляется",
	Error:                 "Недопустимый переход, состояние дрона некорректно",
}
