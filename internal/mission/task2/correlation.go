package task2

import (
	"strings"
	"sync"
	"unicode/utf8"

	"task-manager-go/internal/config"
	"task-manager-go/internal/geo"
	"task-manager-go/pkg/models"
)

// Qr QR-код в СК map
type Qr struct {
	Position models.Point `json:"position"`
	Content  string       `json:"content"`
	OnFloor  bool         `json:"on_floor"` // true, если код нарисован на полу
}

// NewQr создаёт QR-код и определяет, лежит ли он на полу
func NewQr(position models.Point, content string, maxFloorZ float64) Qr {
	return Qr{
		Position: position,
		Content:  content,
		OnFloor:  position.Z < maxFloorZ,
	}
}

// Store хранит найденные в текущей комнате QR-коды, проёмы, связи между
// ними и пройденные комнаты. Каждая часть защищена своим мьютексом, два
// мьютекса одновременно не захватываются: данные копируются и только
// потом используются.
type Store struct {
	params config.Task2Params

	qrMu sync.Mutex
	qrs  []Qr

	holesMu sync.Mutex
	holes   []models.DetectedObject

	linksMu  sync.Mutex
	holeByQr map[int]int64 // индекс QR -> ID проёма
	qrByHole map[int64]int // ID проёма -> индекс QR

	roomsMu sync.Mutex
	rooms   []string
}

// NewStore создаёт пустое хранилище
func NewStore(params config.Task2Params) *Store {
	return &Store{
		params:   params,
		holeByQr: make(map[int]int64),
		qrByHole: make(map[int64]int),
	}
}

// Observe проверяет QR-код на повтор и, если он новый, запоминает его.
// Возвращает индекс кода и true для нового кода.
//
// Код на полу повторяет ранее найденный код на полу с тем же содержимым,
// а слишком длинное содержимое кода на полу считается ошибкой чтения.
// Код на стене повторяет любой код в пределах MaxQrDistanceTolerance.
func (s *Store) Observe(qr Qr) (int, bool) {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()

	if s.duplicate(qr) {
		return -1, false
	}
	s.qrs = append(s.qrs, qr)
	return len(s.qrs) - 1, true
}

func (s *Store) duplicate(qr Qr) bool {
	if qr.OnFloor {
		if utf8.RuneCountInString(qr.Content) > s.params.MaxFloorQrContentLength {
			return true
		}
		for _, known := range s.qrs {
			if known.OnFloor && known.Content == qr.Content {
				return true
			}
		}
		return false
	}

	for _, known := range s.qrs {
		if geo.Distance(known.Position, qr.Position) <= s.params.MaxQrDistanceTolerance {
			return true
		}
	}
	return false
}

// IsAlreadyDetected проверяет код на повтор, запоминая новый код
func (s *Store) IsAlreadyDetected(qr Qr) bool {
	_, fresh := s.Observe(qr)
	return !fresh
}

// Qr возвращает код по индексу
func (s *Store) Qr(index int) (Qr, bool) {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()
	if index < 0 || index >= len(s.qrs) {
		return Qr{}, false
	}
	return s.qrs[index], true
}

func (s *Store) qrSnapshot() []Qr {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()
	return append([]Qr(nil), s.qrs...)
}

// SetHoles заменяет список известных проёмов
func (s *Store) SetHoles(holes []models.DetectedObject) {
	s.holesMu.Lock()
	defer s.holesMu.Unlock()
	s.holes = append([]models.DetectedObject(nil), holes...)
}

func (s *Store) holesSnapshot() []models.DetectedObject {
	s.holesMu.Lock()
	defer s.holesMu.Unlock()
	return append([]models.DetectedObject(nil), s.holes...)
}

// FindConnectedHole находит ближайший к коду проём в пределах
// MaxAssociationDistance. При равных расстояниях выбирается первый.
func (s *Store) FindConnectedHole(qr Qr) (models.DetectedObject, bool) {
	var (
		best  models.DetectedObject
		found bool
		dist  float64
	)
	for _, hole := range s.holesSnapshot() {
		d := geo.Distance(hole.Pose.Position, qr.Position)
		if d > s.params.MaxAssociationDistance {
			continue
		}
		if !found || d < dist {
			best, dist, found = hole, d, true
		}
	}
	return best, found
}

// FindConnectedQr находит ближайший к проёму код на стене в пределах
// MaxAssociationDistance и возвращает его индекс
func (s *Store) FindConnectedQr(hole models.DetectedObject) (int, bool) {
	best, dist := -1, 0.0
	for i, qr := range s.qrSnapshot() {
		if qr.OnFloor {
			continue
		}
		d := geo.Distance(hole.Pose.Position, qr.Position)
		if d > s.params.MaxAssociationDistance {
			continue
		}
		if best < 0 || d < dist {
			best, dist = i, d
		}
	}
	return best, best >= 0
}

// Link связывает код с проёмом. Связь взаимно однозначна: прежние связи
// кода и проёма удаляются.
func (s *Store) Link(qrIndex int, holeID int64) {
	s.linksMu.Lock()
	defer s.linksMu.Unlock()

	if old, ok := s.holeByQr[qrIndex]; ok {
		delete(s.qrByHole, old)
	}
	if old, ok := s.qrByHole[holeID]; ok {
		delete(s.holeByQr, old)
	}
	s.holeByQr[qrIndex] = holeID
	s.qrByHole[holeID] = qrIndex
}

func (s *Store) linkedHole(qrIndex int) (int64, bool) {
	s.linksMu.Lock()
	defer s.linksMu.Unlock()
	id, ok := s.holeByQr[qrIndex]
	return id, ok
}

func (s *Store) linkedQr(holeID int64) (int, bool) {
	s.linksMu.Lock()
	defer s.linksMu.Unlock()
	i, ok := s.qrByHole[holeID]
	return i, ok
}

// HoleForQr возвращает проём, связанный с кодом
func (s *Store) HoleForQr(qrIndex int) (models.DetectedObject, bool) {
	id, ok := s.linkedHole(qrIndex)
	if !ok {
		return models.DetectedObject{}, false
	}
	for _, hole := range s.holesSnapshot() {
		if hole.ID == id {
			return hole, true
		}
	}
	return models.DetectedObject{}, false
}

// MatchQrWithFloorQr находит код на полу с тем же содержимым, что и код qrIndex
func (s *Store) MatchQrWithFloorQr(qrIndex int) (int, bool) {
	qrs := s.qrSnapshot()
	if qrIndex < 0 || qrIndex >= len(qrs) {
		return -1, false
	}
	for i, qr := range qrs {
		if i != qrIndex && qr.OnFloor && qr.Content == qrs[qrIndex].Content {
			return i, true
		}
	}
	return -1, false
}

// MatchHoleWithFloorQr находит код на полу с тем же содержимым, что и код,
// связанный с проёмом holeID
func (s *Store) MatchHoleWithFloorQr(holeID int64) (int, bool) {
	qrIndex, ok := s.linkedQr(holeID)
	if !ok {
		return -1, false
	}
	return s.MatchQrWithFloorQr(qrIndex)
}

// HoleForFloorQr находит код на стене с тем же содержимым, что и код на полу
// floorIndex, и связанный с ним проём. Возвращает проём и индекс кода на стене.
func (s *Store) HoleForFloorQr(floorIndex int) (models.DetectedObject, int, bool) {
	qrs := s.qrSnapshot()
	if floorIndex < 0 || floorIndex >= len(qrs) {
		return models.DetectedObject{}, -1, false
	}
	for i, qr := range qrs {
		if qr.OnFloor || qr.Content != qrs[floorIndex].Content {
			continue
		}
		if hole, ok := s.HoleForQr(i); ok {
			return hole, i, true
		}
	}
	return models.DetectedObject{}, -1, false
}

// MatchQrWithPassedRooms возвращает код, если его содержимое совпадает с
// последовательно объединёнными номерами пройденных комнат
func (s *Store) MatchQrWithPassedRooms(qrIndex int) (Qr, bool) {
	qr, ok := s.Qr(qrIndex)
	if !ok {
		return Qr{}, false
	}
	if qr.Content != strings.Join(s.PassedRooms(), "") {
		return Qr{}, false
	}
	return qr, true
}

// PassRoom запоминает номер пройденной комнаты по содержимому кода qrIndex
// и забывает коды и связи текущей комнаты
func (s *Store) PassRoom(qrIndex int) {
	s.qrMu.Lock()
	var content string
	if qrIndex >= 0 && qrIndex < len(s.qrs) {
		content = s.qrs[qrIndex].Content
	}
	s.qrs = nil
	s.qrMu.Unlock()

	s.linksMu.Lock()
	s.holeByQr = make(map[int]int64)
	s.qrByHole = make(map[int64]int)
	s.linksMu.Unlock()

	s.roomsMu.Lock()
	s.rooms = append(s.rooms, content)
	s.roomsMu.Unlock()
}

// PassedRooms возвращает номера пройденных комнат по порядку
func (s *Store) PassedRooms() []string {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()
	return append([]string(nil), s.rooms...)
}
