// Package task3 миссия следования по линии на полу
package task3

import (
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/mission"
)

// Состояния миссии
const (
	WaitingForCommand fsm.State = "WaitingForCommand"
	FollowingLine     fsm.State = "FollowingLine"
	Error             fsm.State = "Error"
)

// Table таблица переходов миссии
var Table = fsm.MustTable("task3", WaitingForCommand, Error,
	fsm.Rule{From: []fsm.State{WaitingForCommand}, On: mission.EventStart, To: []fsm.State{FollowingLine}},
)

var descriptions = map[fsm.State]string{
	WaitingForCommand: "Дрон ожидает команды",
	FollowingLine:     "Дрон летит вдоль линии",
	Error:             "Недопустимый переход, состояние дрона некорректно",
}
