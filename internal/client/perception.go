package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"task-manager-go/internal/geo"
	"task-manager-go/pkg/models"
)

type countResponse struct {
	Count int `json:"count"`
}

type objectsResponse struct {
	Objects []models.DetectedObject `json:"objects"`
}

type transformPointRequest struct {
	Point models.PointStamped `json:"point"`
	Frame string              `json:"target_frame_id"`
}

type transformPoseRequest struct {
	Pose  models.PoseStamped `json:"pose"`
	Frame string             `json:"target_frame_id"`
}

// PerceptionClient клиент узла восприятия: обнаруженные проёмы и кубы,
// преобразования между системами координат.
//
// Проёмы приводятся к соглашению задачи (нормаль вдоль локальной оси x)
// ровно один раз, при получении от узла.
type PerceptionClient struct {
	*apiClient
}

// NewPerceptionClient создаёт клиент узла восприятия
func NewPerceptionClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *PerceptionClient {
	return &PerceptionClient{
		apiClient: newAPIClient("perception", baseURL, timeout, logger),
	}
}

// NearestHole возвращает ближайший к дрону проём или nil, если проёмов ещё нет
func (c *PerceptionClient) NearestHole(ctx context.Context) (*models.DetectedObject, error) {
	var hole models.DetectedObject
	err := c.call(ctx, http.MethodGet, "/holes/nearest", nil, &hole)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fixed := geo.FixApertureConvention(hole)
	return &fixed, nil
}

// CountHoles возвращает количество обнаруженных проёмов
func (c *PerceptionClient) CountHoles(ctx context.Context) (int, error) {
	return c.count(ctx, "/holes/count")
}

// Holes возвращает все обнаруженные проёмы
func (c *PerceptionClient) Holes(ctx context.Context) ([]models.DetectedObject, error) {
	holes, err := c.objects(ctx, "/holes")
	if err != nil {
		return nil, err
	}
	for i := range holes {
		holes[i] = geo.FixApertureConvention(holes[i])
	}
	return holes, nil
}

// CountCubes возвращает количество обнаруженных кубов
func (c *PerceptionClient) CountCubes(ctx context.Context) (int, error) {
	return c.count(ctx, "/cubes/count")
}

// Cubes возвращает все обнаруженные кубы
func (c *PerceptionClient) Cubes(ctx context.Context) ([]models.DetectedObject, error) {
	return c.objects(ctx, "/cubes")
}

// TransformPoint переводит точку в систему координат frame
func (c *PerceptionClient) TransformPoint(ctx context.Context, p models.PointStamped, frame string) (models.PointStamped, error) {
	var out models.PointStamped
	err := c.do(ctx, http.MethodPost, "/transform/point", transformPointRequest{Point: p, Frame: frame}, &out)
	return out, err
}

// TransformPose переводит позу в систему координат frame
func (c *PerceptionClient) TransformPose(ctx context.Context, p models.PoseStamped, frame string) (models.PoseStamped, error) {
	var out models.PoseStamped
	err := c.do(ctx, http.MethodPost, "/transform/pose", transformPoseRequest{Pose: p, Frame: frame}, &out)
	return out, err
}

func (c *PerceptionClient) count(ctx context.Context, path string) (int, error) {
	var resp countResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *PerceptionClient) objects(ctx context.Context, path string) ([]models.DetectedObject, error) {
	var resp objectsResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}
