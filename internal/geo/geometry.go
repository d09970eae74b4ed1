package geo

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"task-manager-go/pkg/models"
)

// epsilon порог вырожденности векторов
const epsilon = 1e-9

var (
	worldX  = r3.Vec{X: 1}
	worldY  = r3.Vec{Y: 1}
	worldUp = r3.Vec{Z: 1}
)

// Plane представляет плоскость Ax + By + Cz + D = 0
type Plane struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
}

// Normal возвращает вектор нормали плоскости
func (p Plane) Normal() models.Vector3 {
	return models.Vector3{X: p.A, Y: p.B, Z: p.C}
}

// Distance вычисляет евклидово расстояние между двумя точками
func Distance(p1, p2 models.Point) float64 {
	return r3.Norm(r3.Sub(vec(p1), vec(p2)))
}

// PlaneFromPointAndNormal строит плоскость, проходящую через center,
// нормаль которой совпадает с локальной осью x ориентации orientation
func PlaneFromPointAndNormal(center models.Point, orientation models.Quaternion) Plane {
	normal := rotation(orientation).Rotate(worldX)
	return planeThrough(vec(center), normal)
}

func planeThrough(c, normal r3.Vec) Plane {
	return Plane{
		A: normal.X,
		B: normal.Y,
		C: normal.Z,
		D: -r3.Dot(normal, c),
	}
}

// SignedDistance возвращает расстояние со знаком от точки до плоскости.
// Для плоскости с нулевой нормалью возвращается 0.
func SignedDistance(p models.Point, plane Plane) float64 {
	n := r3.Vec{X: plane.A, Y: plane.B, Z: plane.C}
	norm := r3.Norm(n)
	if norm < epsilon {
		return 0
	}
	return (r3.Dot(n, vec(p)) + plane.D) / norm
}

// PointToPlaneDistance возвращает расстояние от точки до плоскости
func PointToPlaneDistance(p models.Point, plane Plane) float64 {
	return math.Abs(SignedDistance(p, plane))
}

// Opposite сообщает, лежат ли точки строго по разные стороны плоскости.
// Точка на плоскости не находится ни с какой стороны.
func Opposite(p1, p2 models.Point, plane Plane) bool {
	return SignedDistance(p1, plane)*SignedDistance(p2, plane) < 0
}

// SameSide истинно, если точки не лежат строго по разные стороны плоскости
func SameSide(p1, p2 models.Point, plane Plane) bool {
	return !Opposite(p1, p2, plane)
}

// FaceToward возвращает ориентацию, у которой локальная ось x направлена
// вдоль direction, а локальная ось z максимально близка к вертикали.
//
// Нулевое направление даёт единичный кватернион. Если направление
// вертикально, локальная ось y совпадает с мировой осью y.
func FaceToward(direction models.Vector3) models.Quaternion {
	d := r3.Vec{X: direction.X, Y: direction.Y, Z: direction.Z}
	if r3.Norm(d) < epsilon {
		return models.IdentityQuaternion()
	}

	x := r3.Unit(d)
	y := r3.Cross(worldUp, x)
	if r3.Norm(y) < epsilon {
		y = worldY
	} else {
		y = r3.Unit(y)
	}
	z := r3.Cross(x, y)

	return fromAxes(x, y, z)
}

// OrientationToward возвращает горизонтальную ориентацию от from в сторону to
func OrientationToward(from, to models.Point) models.Quaternion {
	return FaceToward(models.Vector3{X: to.X - from.X, Y: to.Y - from.Y})
}

// Yaw возвращает угол рыскания ориентации в радианах
func Yaw(q models.Quaternion) float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// YawBetween возвращает угол рыскания направления from -> to.
// Для точек, совпадающих в горизонтальной плоскости, возвращается π.
func YawBetween(from, to models.Point) float64 {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if math.Abs(dx) < epsilon && math.Abs(dy) < epsilon {
		return math.Pi
	}
	return math.Atan2(dy, dx)
}

// fromAxes переводит ортонормированный базис (столбцы матрицы поворота) в кватернион
func fromAxes(x, y, z r3.Vec) models.Quaternion {
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z

	var q quat.Number
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{Real: 0.25 * s, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}

	return quaternion(normalize(q))
}

func vec(p models.Point) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

func point(v r3.Vec) models.Point {
	return models.Point{X: v.X, Y: v.Y, Z: v.Z}
}

// rotation переводит кватернион сообщения в поворот gonum.
// Нулевой кватернион трактуется как отсутствие поворота.
func rotation(q models.Quaternion) r3.Rotation {
	return r3.Rotation(normalize(quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}))
}

func quaternion(q quat.Number) models.Quaternion {
	return models.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

func normalize(q quat.Number) quat.Number {
	abs := quat.Abs(q)
	if abs < epsilon {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/abs, q)
}
