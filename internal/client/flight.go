package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"task-manager-go/pkg/models"
)

const (
	// cancelSettleTime пауза после отмены целей, пока планировщик их сбрасывает
	cancelSettleTime = time.Second
	// goalPollPeriod период опроса статуса цели навигации
	goalPollPeriod = 500 * time.Millisecond
)

// Статусы цели навигации
const (
	GoalActive    = "active"
	GoalSucceeded = "succeeded"
	GoalAborted   = "aborted"
	GoalCancelled = "cancelled"
)

type takeoffRequest struct {
	Altitude float64 `json:"altitude"`
}

type spinRequest struct {
	Laps            int     `json:"laps"`
	Altitude        float64 `json:"altitude"`
	AngularVelocity float64 `json:"angular_velocity"`
	Wait            bool    `json:"wait"`
}

type enableRequest struct {
	Enabled bool `json:"enabled"`
}

type wallRequest struct {
	FrameID string                  `json:"frame_id"`
	Objects []models.DetectedObject `json:"objects"`
}

type goalResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// FlightClient клиент сервиса управления полётом: взлёт и посадка,
// вращение, планировщик маршрутов и его виртуальные стены
type FlightClient struct {
	*apiClient
	clock clock.Clock
}

// NewFlightClient создаёт клиент сервиса управления полётом
func NewFlightClient(baseURL string, timeout time.Duration, clk clock.Clock, logger *logrus.Logger) *FlightClient {
	return &FlightClient{
		apiClient: newAPIClient("flight", baseURL, timeout, logger),
		clock:     clk,
	}
}

// Takeoff поднимает дрона на высоту altitude
func (c *FlightClient) Takeoff(ctx context.Context, altitude float64) error {
	c.logger.WithField("altitude", altitude).Info("Взлёт")
	return c.do(ctx, http.MethodPost, "/takeoff", takeoffRequest{Altitude: altitude}, nil)
}

// Land сажает дрона в текущей точке
func (c *FlightClient) Land(ctx context.Context) error {
	c.logger.Info("Посадка")
	return c.do(ctx, http.MethodPost, "/land", nil, nil)
}

// Spin запускает вращение вокруг оси Z
func (c *FlightClient) Spin(ctx context.Context, laps int, altitude, angularVelocity float64) error {
	return c.spin(ctx, laps, altitude, angularVelocity, false)
}

// SpinAndWait вращает дрона и ждёт окончания вращения
func (c *FlightClient) SpinAndWait(ctx context.Context, laps int, altitude, angularVelocity float64) error {
	return c.spin(ctx, laps, altitude, angularVelocity, true)
}

func (c *FlightClient) spin(ctx context.Context, laps int, altitude, angularVelocity float64, wait bool) error {
	c.logger.WithFields(logrus.Fields{
		"laps":     laps,
		"altitude": altitude,
		"wait":     wait,
	}).Debug("Вращение")
	return c.do(ctx, http.MethodPost, "/spin", spinRequest{
		Laps:            laps,
		Altitude:        altitude,
		AngularVelocity: angularVelocity,
		Wait:            wait,
	}, nil)
}

// StopSpin останавливает вращение
func (c *FlightClient) StopSpin(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/spin/stop", nil, nil)
}

// CancelAllGoals отменяет все цели планировщика и ждёт, пока он их сбросит
func (c *FlightClient) CancelAllGoals(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/goals/cancel", nil, nil); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(cancelSettleTime):
		return nil
	}
}

// SetExploration переключает планировщик на автономное исследование и обратно
func (c *FlightClient) SetExploration(ctx context.Context, enabled bool) error {
	c.logger.WithField("enabled", enabled).Info("Переключение автономного исследования")
	return c.do(ctx, http.MethodPost, "/exploration", enableRequest{Enabled: enabled}, nil)
}

// AddWall закрывает проём виртуальной стеной. Проём задаётся в СК map.
func (c *FlightClient) AddWall(ctx context.Context, aperture models.DetectedObject) error {
	return c.do(ctx, http.MethodPost, "/walls", wallRequest{
		FrameID: models.FrameMap,
		Objects: []models.DetectedObject{aperture},
	}, nil)
}

// SetWallsEnabled включает или отключает виртуальные стены
func (c *FlightClient) SetWallsEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPost, "/walls/enabled", enableRequest{Enabled: enabled}, nil)
}

// SendGoal отправляет цель планировщику. Если onDone не nil, SendGoal
// опрашивает статус цели и возвращается после её достижения (onDone уже
// вызван), после отказа планировщика или при отмене ctx.
func (c *FlightClient) SendGoal(ctx context.Context, goal models.PoseStamped, onDone func()) error {
	var resp goalResponse
	if err := c.do(ctx, http.MethodPost, "/goals", goal, &resp); err != nil {
		return err
	}
	c.logger.WithFields(logrus.Fields{
		"goal_id":  resp.ID,
		"position": goal.Pose.Position,
	}).Info("Цель отправлена планировщику")

	if onDone == nil {
		return nil
	}
	return c.watchGoal(ctx, resp.ID, onDone)
}

func (c *FlightClient) watchGoal(ctx context.Context, id string, onDone func()) error {
	ticker := c.clock.Ticker(goalPollPeriod)
	defer ticker.Stop()

	log := c.logger.WithField("goal_id", id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := c.GoalStatus(ctx, id)
		if err != nil {
			log.WithError(err).Debug("Не удалось получить статус цели")
			continue
		}
		switch status {
		case GoalSucceeded:
			log.Info("Цель достигнута")
			onDone()
			return nil
		case GoalAborted, GoalCancelled:
			log.WithField("status", status).Warn("Цель не достигнута")
			return nil
		}
	}
}

// GoalStatus возвращает статус цели навигации
func (c *FlightClient) GoalStatus(ctx context.Context, id string) (string, error) {
	var resp goalResponse
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/goals/%s", id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
