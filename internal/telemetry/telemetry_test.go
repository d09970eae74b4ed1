package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager-go/internal/mission/missiontest"
	"task-manager-go/internal/telemetry"
	"task-manager-go/pkg/models"
)

func TestCacheBlocksUntilFirstMessage(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	c := telemetry.New(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Pose(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = c.BatteryVoltage(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Error(t, c.WaitReady(ctx))
}

func TestCacheFromTopics(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	c := telemetry.New(logger)
	bus := &missiontest.Bus{}
	require.NoError(t, c.Attach(bus))
	require.True(t, bus.Subscribed(models.TopicDronePose))
	require.True(t, bus.Subscribed(models.TopicBattery))

	ready := make(chan error, 1)
	go func() { ready <- c.WaitReady(context.Background()) }()

	pose := models.Pose{Position: models.Point{X: 1, Y: 2, Z: 3}, Orientation: models.IdentityQuaternion()}
	require.NoError(t, bus.Deliver(models.TopicDronePose, models.PoseStamped{FrameID: models.FrameMap, Pose: pose}))
	require.NoError(t, bus.Deliver(models.TopicBattery, models.BatteryState{Voltage: 11.7}))

	select {
	case err := <-ready:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return")
	}

	got, err := c.Pose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pose, got)

	voltage, err := c.BatteryVoltage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11.7, voltage)

	// последнее сообщение замещает предыдущее
	c.SetVoltage(10.2)
	voltage, _ = c.BatteryVoltage(context.Background())
	assert.Equal(t, 10.2, voltage)

	// некорректное сообщение не портит кэш
	bus.Deliver(models.TopicBattery, "garbage")
	voltage, _ = c.BatteryVoltage(context.Background())
	assert.Equal(t, 10.2, voltage)
	assert.NotEmpty(t, hook.Entries)
}
