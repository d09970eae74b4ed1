package mission

import "task-manager-go/internal/fsm"

// События, общие для всех миссий
const (
	EventStart   fsm.EventType = "Start"
	EventFailure fsm.EventType = "Failure"
)

// Start команда начала миссии
var Start = fsm.Signal(EventStart)

// FailureKind причина аварийного события
type FailureKind string

// Причины аварий
const (
	LowVoltageDetected FailureKind = "LowVoltageDetected"
	Timeout            FailureKind = "Timeout"
)

// Failure аварийное событие: низкий заряд или истечение времени
type Failure struct {
	Kind FailureKind
}

// Type возвращает тип события
func (Failure) Type() fsm.EventType {
	return EventFailure
}
