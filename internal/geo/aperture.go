package geo

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"task-manager-go/pkg/models"
)

// EntryPoint вычисляет точку подлёта к проёму.
//
// Кандидаты лежат на расстоянии standoff от центра проёма вдоль его
// локальной оси x. Выбирается кандидат, более далёкий от наблюдателя,
// при равенстве расстояний берётся кандидат с положительной стороны.
// Ориентация смотрит из выбранной точки на центр проёма в горизонтальной плоскости.
func EntryPoint(aperture models.Pose, observer models.Point, standoff float64) models.Pose {
	center := vec(aperture.Position)
	offset := rotation(aperture.Orientation).Rotate(r3.Vec{X: standoff})

	positive := point(r3.Add(center, offset))
	negative := point(r3.Sub(center, offset))

	chosen := negative
	if Distance(observer, positive) >= Distance(observer, negative) {
		chosen = positive
	}

	return models.Pose{
		Position:    chosen,
		Orientation: OrientationToward(chosen, aperture.Position),
	}
}

// FixApertureConvention приводит проём от узла восприятия к соглашению,
// в котором локальная ось x перпендикулярна плоскости проёма.
// Размеры (x, y, z) переставляются в (z, x, y), ориентация поворачивается
// на +90° вокруг локальной оси y.
func FixApertureConvention(aperture models.DetectedObject) models.DetectedObject {
	fixed := aperture
	fixed.Dimensions = models.Vector3{
		X: aperture.Dimensions.Z,
		Y: aperture.Dimensions.X,
		Z: aperture.Dimensions.Y,
	}

	turn := quat.Number(r3.NewRotation(math.Pi/2, worldY))
	fixed.Pose.Orientation = quaternion(normalize(quat.Mul(quat.Number(rotation(aperture.Pose.Orientation)), turn)))

	return fixed
}

// HasSimilarOrientation проверяет, продолжает ли next движение prev -> cur:
// prev и next должны лежать по разные стороны плоскости, проходящей через cur
// перпендикулярно отрезку prev -> cur. Для совпадающих prev и cur возвращает false.
func HasSimilarOrientation(prev, cur, next models.Point) bool {
	normal := r3.Sub(vec(cur), vec(prev))
	if r3.Norm(normal) < epsilon {
		return false
	}
	return Opposite(prev, next, planeThrough(vec(cur), normal))
}
