package watch

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Частоты опроса источников событий
const (
	DiscoveryPeriod = time.Second            // проёмы, кубы, поиск входа
	BatteryPeriod   = time.Second            // заряд аккумулятора
	TimerPeriod     = 5 * time.Second        // таймер миссии
	TransitPeriod   = 250 * time.Millisecond // детектор пролёта
	FollowPeriod    = 50 * time.Millisecond  // следование по линии
)

// Loop вызывает step сразу и затем с периодом period, пока step не вернёт
// true или не будет отменён ctx.
func Loop(ctx context.Context, clk clock.Clock, period time.Duration, step func(ctx context.Context) bool) error {
	ticker := clk.Ticker(period)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if step(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
