package transit

import (
	"task-manager-go/internal/geo"
	"task-manager-go/pkg/models"
)

// Detector отслеживает пролёт дрона сквозь проём.
//
// Детектор взводится, когда дрон впервые оказывается ближе arming к плоскости
// проёма; точка взвода запоминается навсегда. Пролёт засчитывается, когда
// дрон оказался по другую сторону плоскости проёма относительно точки взвода
// и удалился от плоскости не менее чем на completion. Значение пролёта
// монотонно: после true детектор больше не меняется.
type Detector struct {
	plane       geo.Plane
	center      models.Point
	orientation models.Quaternion
	arming      float64
	completion  float64
	start       *models.Point
	flewThrough bool
}

// Begin создаёт детектор для проёма aperture и сразу учитывает позицию дрона
func Begin(aperture models.Pose, arming, completion float64, vehicle models.Point) Detector {
	d := Detector{
		plane:       geo.PlaneFromPointAndNormal(aperture.Position, aperture.Orientation),
		center:      aperture.Position,
		orientation: aperture.Orientation,
		arming:      arming,
		completion:  completion,
	}
	return d.Update(vehicle)
}

// Update возвращает состояние детектора с учётом новой позиции дрона
func (d Detector) Update(vehicle models.Point) Detector {
	if d.flewThrough {
		return d
	}

	if d.start == nil {
		if geo.PointToPlaneDistance(vehicle, d.plane) > d.arming {
			return d
		}
		start := vehicle
		d.start = &start
	}

	d.flewThrough = geo.Opposite(*d.start, vehicle, d.plane) &&
		geo.PointToPlaneDistance(vehicle, d.plane) >= d.completion

	return d
}

// FlewThrough сообщает, засчитан ли пролёт
func (d Detector) FlewThrough() bool {
	return d.flewThrough
}

// Armed сообщает, подлетал ли дрон к плоскости проёма на расстояние взвода
func (d Detector) Armed() bool {
	return d.start != nil
}

// StartPoint возвращает точку взвода
func (d Detector) StartPoint() (models.Point, bool) {
	if d.start == nil {
		return models.Point{}, false
	}
	return *d.start, true
}

// Plane возвращает плоскость проёма
func (d Detector) Plane() geo.Plane {
	return d.plane
}

// Center возвращает центр проёма
func (d Detector) Center() models.Point {
	return d.center
}
