package watch

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// BatteryWatchdog раз в секунду проверяет заряд аккумулятора и вызывает
// OnLow один раз, когда напряжение опускается до MinVoltage.
// Отсутствие данных не считается аварией.
type BatteryWatchdog struct {
	Clock      clock.Clock
	Read       func(ctx context.Context) (float64, error)
	MinVoltage float64
	Alive      func() bool
	OnLow      func()
	Logger     *logrus.Logger
}

// Run выполняет проверки до срабатывания, потери работоспособности или отмены ctx
func (w BatteryWatchdog) Run(ctx context.Context) error {
	return Loop(ctx, w.Clock, BatteryPeriod, func(ctx context.Context) bool {
		if !w.Alive() {
			return true
		}
		voltage, err := w.Read(ctx)
		if err != nil {
			w.Logger.WithError(err).Debug("Нет данных о заряде аккумулятора")
			return false
		}
		if voltage > w.MinVoltage {
			return false
		}
		w.Logger.WithFields(logrus.Fields{
			"voltage":     voltage,
			"min_voltage": w.MinVoltage,
		}).Warn("Обнаружен низкий заряд аккумулятора")
		w.OnLow()
		return true
	})
}

// MissionTimer отсчитывает время миссии, пишет в лог каждую прошедшую минуту
// и вызывает OnTimeout один раз по истечении Limit.
type MissionTimer struct {
	Clock     clock.Clock
	Start     time.Time
	Limit     time.Duration
	Alive     func() bool
	OnTimeout func()
	Logger    *logrus.Logger
}

// Run выполняет отсчёт до срабатывания, потери работоспособности или отмены ctx
func (w MissionTimer) Run(ctx context.Context) error {
	logged := 0
	return Loop(ctx, w.Clock, TimerPeriod, func(ctx context.Context) bool {
		if !w.Alive() {
			return true
		}
		elapsed := w.Clock.Since(w.Start)
		for minutes := int(elapsed / time.Minute); logged < minutes; {
			logged++
			w.Logger.Infof("Прошло минут: %d", logged)
		}
		if elapsed <= w.Limit {
			return false
		}
		w.Logger.WithField("limit", w.Limit.String()).Warn("Время миссии истекло")
		w.OnTimeout()
		return true
	})
}
