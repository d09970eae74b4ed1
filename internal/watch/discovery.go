package watch

import (
	"cmp"
	"context"
	"slices"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"task-manager-go/pkg/models"
)

// CountWatcher следит за количеством объектов у узла восприятия.
//
// Список запрашивается только когда счётчик вырос. Объекты упорядочиваются
// по ID, и новыми считаются те, что идут после уже обработанных.
// Если узел восприятия пропускает или переупорядочивает ID, часть объектов
// не будет обработана.
type CountWatcher struct {
	Name   string
	Count  func(ctx context.Context) (int, error)
	Fetch  func(ctx context.Context) ([]models.DetectedObject, error)
	OnNew  func(ctx context.Context, all, fresh []models.DetectedObject)
	Logger *logrus.Logger

	known int
}

// Step выполняет одну проверку
func (w *CountWatcher) Step(ctx context.Context) error {
	count, err := w.Count(ctx)
	if err != nil {
		return err
	}
	if count <= w.known {
		if count < w.known {
			w.Logger.WithFields(logrus.Fields{
				"objects": w.Name,
				"count":   count,
				"known":   w.known,
			}).Warn("Количество объектов уменьшилось")
		}
		return nil
	}

	all, err := w.Fetch(ctx)
	if err != nil {
		return err
	}
	slices.SortStableFunc(all, func(a, b models.DetectedObject) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if len(all) <= w.known {
		return nil
	}

	fresh := all[w.known:]
	w.known = len(all)
	w.Logger.WithFields(logrus.Fields{
		"objects": w.Name,
		"new":     len(fresh),
		"total":   len(all),
	}).Info("Обнаружены новые объекты")
	w.OnNew(ctx, all, fresh)

	return nil
}

// Known возвращает количество обработанных объектов
func (w *CountWatcher) Known() int {
	return w.known
}

// Run опрашивает узел восприятия раз в секунду, пока alive истинно
func (w *CountWatcher) Run(ctx context.Context, clk clock.Clock, alive func() bool) error {
	return Loop(ctx, clk, DiscoveryPeriod, func(ctx context.Context) bool {
		if !alive() {
			return true
		}
		if err := w.Step(ctx); err != nil {
			w.Logger.WithError(err).WithField("objects", w.Name).Debug("Не удалось опросить узел восприятия")
		}
		return false
	})
}
