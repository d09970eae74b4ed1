package watch

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/transit"
	"task-manager-go/pkg/models"
)

// TransitWatcher четыре раза в секунду обновляет детектор пролёта
// по текущей позиции дрона.
type TransitWatcher struct {
	Clock      clock.Clock
	Pose       func(ctx context.Context) (models.Pose, error)
	Aperture   models.Pose
	Arming     float64
	Completion float64
	Alive      func() bool
	Logger     *logrus.Logger
}

// Run возвращает true, когда пролёт засчитан, и false, если миссия
// потеряла работоспособность раньше.
func (w TransitWatcher) Run(ctx context.Context) (bool, error) {
	var (
		detector transit.Detector
		started  bool
		passed   bool
	)

	err := Loop(ctx, w.Clock, TransitPeriod, func(ctx context.Context) bool {
		if !w.Alive() {
			return true
		}
		pose, err := w.Pose(ctx)
		if err != nil {
			w.Logger.WithError(err).Debug("Нет данных о позиции дрона")
			return false
		}

		armed := detector.Armed()
		if !started {
			detector = transit.Begin(w.Aperture, w.Arming, w.Completion, pose.Position)
			started = true
		} else {
			detector = detector.Update(pose.Position)
		}
		if !armed && detector.Armed() {
			w.Logger.WithField("position", pose.Position).Debug("Дрон подлетел к плоскости проёма, детектор пролёта взведён")
		}

		passed = detector.FlewThrough()
		return passed
	})
	if err != nil {
		return false, err
	}
	return passed, nil
}
