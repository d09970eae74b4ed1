package mission

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"task-manager-go/internal/geo"
	"task-manager-go/internal/watch"
	"task-manager-go/pkg/models"
)

// Approach параметры пролёта сквозь проём
type Approach struct {
	Standoff   float64 // Отступ точки подлёта от центра проёма
	Arming     float64 // Расстояние взвода детектора пролёта
	Completion float64 // Расстояние за плоскостью проёма
}

// FlyThroughAperture отправляет дрона в точку подлёта к проёму с дальней
// от него стороны и ждёт, пока детектор засчитает пролёт. После пролёта
// проём закрывается виртуальной стеной. Возвращает false, если миссия
// потеряла работоспособность раньше.
func FlyThroughAperture(ctx context.Context, deps Deps, run *Run, aperture models.DetectedObject, a Approach) (bool, error) {
	if err := deps.Motion.CancelAllGoals(ctx); err != nil {
		return false, fmt.Errorf("failed to cancel goals: %w", err)
	}

	pose, err := deps.Telemetry.Pose(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get drone pose: %w", err)
	}

	entry := geo.EntryPoint(aperture.Pose, pose.Position, a.Standoff)
	deps.Logger.WithFields(logrus.Fields{
		"run_id":   run.ID.String(),
		"aperture": aperture.ID,
		"entry":    entry.Position,
	}).Info("Дрон летит к проёму")

	if err := deps.Navigator.SendGoal(ctx, models.PoseStamped{FrameID: models.FrameMap, Pose: entry}, nil); err != nil {
		return false, fmt.Errorf("failed to send entry goal: %w", err)
	}

	passed, err := watch.TransitWatcher{
		Clock:      deps.Clock,
		Pose:       deps.Telemetry.Pose,
		Aperture:   aperture.Pose,
		Arming:     a.Arming,
		Completion: a.Completion,
		Alive:      run.Alive,
		Logger:     deps.Logger,
	}.Run(ctx)
	if err != nil || !passed {
		return false, err
	}

	if err := deps.Walls.AddWall(ctx, aperture); err != nil {
		return true, fmt.Errorf("failed to add wall: %w", err)
	}
	return true, nil
}
