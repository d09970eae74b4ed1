package task3

import (
	"sync"

	"task-manager-go/internal/geo"
	"task-manager-go/pkg/models"
)

const (
	maxLineReach    = 3.5 // Точки линии дальше этого расстояния от дрона отбрасываются, м
	duplicateRadius = 0.5 // Точка ближе этого расстояния к уже известной считается повтором, м
	reachedRadius   = 0.2 // Дрон считается достигшим точки на этом расстоянии, м
)

// LinePath маршрут вдоль линии на полу, собираемый из точек детектора линии.
// Все точки лежат в плоскости z = 0.
type LinePath struct {
	mu    sync.Mutex
	poses []models.PoseStamped
}

// Add добавляет точку линии, если она продолжает маршрут.
//
// Первая точка принимается всегда. Вторая ставится в конец, если она
// дальше от дрона, чем первая, иначе в начало. Следующие точки должны
// лежать по ту же сторону, куда ведут две последние точки маршрута, быть
// не дальше maxLineReach от дрона и не повторять уже известные точки.
func (p *LinePath) Add(drone models.Point, pose models.PoseStamped) bool {
	drone.Z = 0
	pose.Pose.Position.Z = 0
	point := pose.Pose.Position

	p.mu.Lock()
	defer p.mu.Unlock()

	switch len(p.poses) {
	case 0:
		p.poses = append(p.poses, pose)
		return true
	case 1:
		if geo.Distance(drone, p.poses[0].Pose.Position) < geo.Distance(drone, point) {
			p.poses = append(p.poses, pose)
		} else {
			p.poses = append([]models.PoseStamped{pose}, p.poses...)
		}
		return true
	}

	previous := p.poses[len(p.poses)-2].Pose.Position
	last := p.poses[len(p.poses)-1].Pose.Position
	if !geo.HasSimilarOrientation(previous, last, point) {
		return false
	}
	if geo.Distance(drone, point) >= maxLineReach {
		return false
	}
	for _, known := range p.poses {
		if geo.Distance(known.Pose.Position, point) < duplicateRadius {
			return false
		}
	}

	p.poses = append(p.poses, pose)
	return true
}

// At возвращает точку маршрута по индексу
func (p *LinePath) At(i int) (models.PoseStamped, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.poses) {
		return models.PoseStamped{}, false
	}
	return p.poses[i], true
}

// Len возвращает количество точек маршрута
func (p *LinePath) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.poses)
}

// Message возвращает маршрут в виде сообщения топика
func (p *LinePath) Message() models.Path {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.Path{
		FrameID: models.FrameMap,
		Poses:   append([]models.PoseStamped(nil), p.poses...),
	}
}
