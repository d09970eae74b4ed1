// Package task2 миссия с QR-кодами: дрон исследует комнаты лабиринта,
// сопоставляет коды на стенах и на полу, пролетает в нужные проёмы и
// садится у кода, содержимое которого совпадает с номерами пройденных комнат.
package task2

import (
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/mission"
	"task-manager-go/pkg/models"
)

// Состояния миссии
const (
	WaitingForCommand    fsm.State = "WaitingForCommand"
	Exploring            fsm.State = "Exploring"
	FlyingIntoHole       fsm.State = "FlyingIntoHole"
	FlyingToLandingPoint fsm.State = "FlyingToLandingPoint"
	Landing              fsm.State = "Landing"
	Error                fsm.State = "Error"
)

// События миссии
const (
	EventQrFound               fsm.EventType = "QrFound"
	EventHoleFound             fsm.EventType = "HoleFound"
	EventFlewThroughHole       fsm.EventType = "FlewThroughHole"
	EventArrivedAtLandingPoint fsm.EventType = "ArrivedAtLandingPoint"
)

// QrFound найден новый QR-код
type QrFound struct {
	Index    int
	QR       Qr
	Decision Decision
}

// Type возвращает тип события
func (QrFound) Type() fsm.EventType { return EventQrFound }

// HoleFound найден новый проём
type HoleFound struct {
	Hole     models.DetectedObject
	Decision Decision
}

// Type возвращает тип события
func (HoleFound) Type() fsm.EventType { return EventHoleFound }

// FlewThroughHole дрон пролетел сквозь проём
type FlewThroughHole struct {
	QrIndex int // Код, связанный с проёмом
}

// Type возвращает тип события
func (FlewThroughHole) Type() fsm.EventType { return EventFlewThroughHole }

// ArrivedAtLandingPoint дрон долетел до точки посадки
var ArrivedAtLandingPoint = fsm.Signal(EventArrivedAtLandingPoint)

func decisionOf(ev fsm.Event) Decision {
	switch e := ev.(type) {
	case QrFound:
		return e.Decision
	case HoleFound:
		return e.Decision
	}
	return Decision{Kind: KeepExploring}
}

func explorationGuard(ev fsm.Event) fsm.State {
	switch decisionOf(ev).Kind {
	case EnterHole:
		return FlyingIntoHole
	case GoToLanding:
		return FlyingToLandingPoint
	default:
		return Exploring
	}
}

// Table таблица переходов миссии
var Table = fsm.MustTable("task2", WaitingForCommand, Error,
	fsm.Rule{From: []fsm.State{WaitingForCommand}, On: mission.EventStart, To: []fsm.State{Exploring}},
	fsm.Rule{From: []fsm.State{WaitingForCommand}, On: EventQrFound, To: []fsm.State{WaitingForCommand}},
	fsm.Rule{From: []fsm.State{WaitingForCommand}, On: EventHoleFound, To: []fsm.State{WaitingForCommand}},

	fsm.Rule{
		From:  []fsm.State{Exploring},
		On:    EventQrFound,
		To:    []fsm.State{Exploring, FlyingIntoHole, FlyingToLandingPoint},
		Guard: explorationGuard,
	},
	fsm.Rule{
		From:  []fsm.State{Exploring},
		On:    EventHoleFound,
		To:    []fsm.State{Exploring, FlyingIntoHole},
		Guard: explorationGuard,
	},

	fsm.Rule{From: []fsm.State{FlyingIntoHole}, On: EventQrFound, To: []fsm.State{FlyingIntoHole}},
	fsm.Rule{From: []fsm.State{FlyingIntoHole}, On: EventHoleFound, To: []fsm.State{FlyingIntoHole}},
	fsm.Rule{From: []fsm.State{FlyingIntoHole}, On: EventFlewThroughHole, To: []fsm.State{Exploring}},

	fsm.Rule{From: []fsm.State{FlyingToLandingPoint}, On: EventQrFound, To: []fsm.State{FlyingToLandingPoint}},
	fsm.Rule{From: []fsm.State{FlyingToLandingPoint}, On: EventHoleFound, To: []fsm.State{FlyingToLandingPoint}},
	fsm.Rule{From: []fsm.State{FlyingToLandingPoint}, On: EventArrivedAtLandingPoint, To: []fsm.State{Landing}},

	fsm.Rule{From: []fsm.State{Landing}, On: EventQrFound, To: []fsm.State{Landing}},
	fsm.Rule{From: []fsm.State{Landing}, On: EventHoleFound, To: []fsm.State{Landing}},

	fsm.Rule{From: []fsm.State{WaitingForCommand, Exploring, FlyingIntoHole, Landing}, On: mission.EventFailure, To: []fsm.State{Landing}},
	fsm.Rule{From: []fsm.State{FlyingToLandingPoint}, On: mission.EventFailure, To: []fsm.State{FlyingToLandingPoint}},
)

var descriptions = map[fsm.State]string{
	WaitingForCommand:    "Дрон ожидает команды",
	Exploring:            "Дрон исследует комнату",
	FlyingIntoHole:       "Дрон летит в проём",
	FlyingToLandingPoint: "Дрон летит к точке посадки",
	Landing:              "Дрон приземляется",
	Error:                "Недопустимый переход, состояние дрона некорректно",
}
