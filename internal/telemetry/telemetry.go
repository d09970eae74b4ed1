package telemetry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"task-manager-go/internal/mission"
	"task-manager-go/pkg/models"
)

// Cache последние показания дрона, полученные из топиков позиции и аккумулятора
type Cache struct {
	mu      sync.RWMutex
	pose    models.Pose
	voltage float64

	poseReady    chan struct{}
	poseOnce     sync.Once
	batteryReady chan struct{}
	batteryOnce  sync.Once

	logger *logrus.Logger
}

// New создаёт пустой кэш телеметрии
func New(logger *logrus.Logger) *Cache {
	return &Cache{
		poseReady:    make(chan struct{}),
		batteryReady: make(chan struct{}),
		logger:       logger,
	}
}

// Attach подписывает кэш на топики позиции и аккумулятора
func (c *Cache) Attach(sub mission.Subscriber) error {
	if err := sub.Subscribe(models.TopicDronePose, c.onPose); err != nil {
		return err
	}
	return sub.Subscribe(models.TopicBattery, c.onBattery)
}

func (c *Cache) onPose(data []byte) {
	var msg models.PoseStamped
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.WithError(err).Warn("Некорректное сообщение с позицией дрона")
		return
	}
	c.SetPose(msg.Pose)
}

func (c *Cache) onBattery(data []byte) {
	var msg models.BatteryState
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.WithError(err).Warn("Некорректное сообщение о состоянии аккумулятора")
		return
	}
	c.SetVoltage(msg.Voltage)
}

// SetPose обновляет позицию дрона
func (c *Cache) SetPose(pose models.Pose) {
	c.mu.Lock()
	c.pose = pose
	c.mu.Unlock()
	c.poseOnce.Do(func() {
		c.logger.Debug("Получена первая позиция дрона")
		close(c.poseReady)
	})
}

// SetVoltage обновляет напряжение аккумулятора
func (c *Cache) SetVoltage(voltage float64) {
	c.mu.Lock()
	c.voltage = voltage
	c.mu.Unlock()
	c.batteryOnce.Do(func() { close(c.batteryReady) })
}

// Pose возвращает последнюю позицию дрона, дожидаясь первого сообщения
func (c *Cache) Pose(ctx context.Context) (models.Pose, error) {
	select {
	case <-ctx.Done():
		return models.Pose{}, ctx.Err()
	case <-c.poseReady:
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose, nil
}

// BatteryVoltage возвращает последнее напряжение аккумулятора, дожидаясь первого сообщения
func (c *Cache) BatteryVoltage(ctx context.Context) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.batteryReady:
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voltage, nil
}

// WaitReady блокирует до первого сообщения с позицией дрона
func (c *Cache) WaitReady(ctx context.Context) error {
	_, err := c.Pose(ctx)
	if err != nil {
		return err
	}
	c.logger.WithField("service", string(mission.ServiceTelemetry)).Info("Необходимый сервис доступен")
	return nil
}
