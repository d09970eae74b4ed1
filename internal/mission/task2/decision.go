package task2

import "task-manager-go/pkg/models"

// DecisionKind куда лететь после очередной находки
type DecisionKind int

const (
	// KeepExploring продолжать исследование комнаты
	KeepExploring DecisionKind = iota
	// EnterHole лететь в проём
	EnterHole
	// GoToLanding лететь к точке посадки
	GoToLanding
)

func (k DecisionKind) String() string {
	switch k {
	case EnterHole:
		return "EnterHole"
	case GoToLanding:
		return "GoToLanding"
	default:
		return "KeepExploring"
	}
}

// Decision решение, принятое по содержимому хранилища в момент находки
type Decision struct {
	Kind         DecisionKind
	Hole         models.DetectedObject // Проём для EnterHole
	QrIndex      int                   // Код, номер которого станет номером пройденной комнаты
	LandingPoint models.Point          // Точка посадки для GoToLanding
}

// DecideQr решает, что делать после обнаружения нового кода qrIndex.
//
// Код на полу ведёт в проём, если такой же код висит на стене у известного
// проёма, либо к точке посадки, если его содержимое совпадает с номерами
// пройденных комнат. Код на стене ведёт в связанный с ним проём, если такой
// же код уже найден на полу.
func (s *Store) DecideQr(qrIndex int) Decision {
	qr, ok := s.Qr(qrIndex)
	if !ok {
		return Decision{Kind: KeepExploring}
	}

	if qr.OnFloor {
		if hole, wallIndex, ok := s.HoleForFloorQr(qrIndex); ok {
			return Decision{Kind: EnterHole, Hole: hole, QrIndex: wallIndex}
		}
		if landing, ok := s.MatchQrWithPassedRooms(qrIndex); ok {
			return Decision{Kind: GoToLanding, QrIndex: qrIndex, LandingPoint: landing.Position}
		}
		return Decision{Kind: KeepExploring}
	}

	if _, ok := s.MatchQrWithFloorQr(qrIndex); ok {
		if hole, ok := s.HoleForQr(qrIndex); ok {
			return Decision{Kind: EnterHole, Hole: hole, QrIndex: qrIndex}
		}
	}
	return Decision{Kind: KeepExploring}
}

// DecideHole решает, что делать после обнаружения нового проёма
func (s *Store) DecideHole(hole models.DetectedObject) Decision {
	if _, ok := s.MatchHoleWithFloorQr(hole.ID); ok {
		qrIndex, _ := s.linkedQr(hole.ID)
		return Decision{Kind: EnterHole, Hole: hole, QrIndex: qrIndex}
	}
	return Decision{Kind: KeepExploring}
}
