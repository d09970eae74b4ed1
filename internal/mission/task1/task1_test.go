package task1_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager-go/internal/config"
	"task-manager-go/internal/fsm"
	"task-manager-go/internal/mission"
	"task-manager-go/internal/mission/missiontest"
	"task-manager-go/internal/mission/task1"
	"task-manager-go/pkg/models"
)

var allEvents = []fsm.Event{
	mission.Start,
	mission.Failure{Kind: mission.Timeout},
	task1.EntryFound{},
	task1.FlewInside,
	task1.AllCubesFound,
	task1.ArrivedAtStart,
}

func TestTable(t *testing.T) {
	t.Parallel()

	expected := map[fsm.State]map[fsm.EventType]fsm.State{
		task1.WaitingForCommand: {
			mission.EventStart:   task1.LookingForEntry,
			mission.EventFailure: task1.Landing,
		},
		task1.LookingForEntry: {
			task1.EventEntryFound: task1.FlyingInside,
			mission.EventFailure:  task1.Landing,
		},
		task1.FlyingInside: {
			task1.EventFlewInside: task1.Exploring,
			mission.EventFailure:  task1.ReturningToStartPoint,
		},
		task1.Exploring: {
			task1.EventAllCubesFound: task1.ReturningToStartPoint,
			mission.EventFailure:     task1.ReturningToStartPoint,
		},
		task1.ReturningToStartPoint: {
			task1.EventArrivedAtStart: task1.Landing,
			mission.EventFailure:      task1.ReturningToStartPoint,
		},
		task1.Landing: {
			mission.EventFailure: task1.Landing,
		},
	}

	for state, row := range expected {
		for _, ev := range allEvents {
			to, err := task1.Table.Next(state, ev)
			if want, ok := row[ev.Type()]; ok {
				require.NoError(t, err, "%s on %s", state, ev.Type())
				assert.Equal(t, want, to, "%s on %s", state, ev.Type())
				continue
			}
			assert.ErrorIs(t, err, fsm.ErrNoTransition, "%s on %s", state, ev.Type())
			assert.Equal(t, task1.Error, to)
		}
	}
}

// waitFor продвигает мок-часы, пока условие не выполнится
func waitFor(t *testing.T, env *missiontest.Env, step time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		env.Clock.Add(step)
		return cond()
	}, 3*time.Second, 5*time.Millisecond)
}

func TestMissionFlow(t *testing.T) {
	t.Parallel()

	env := missiontest.NewEnv()
	params := config.DefaultMissionParams()
	params.Task1.CubesCount = 2
	m := task1.New(env.Deps(), params)
	d := env.Start(m)
	defer func() { _ = d.Run().Stop() }()

	env.Telemetry.SetPath(
		models.Point{Z: 1.5},
		models.Point{X: 1.8, Z: 1.5},
		models.Point{X: 2.0, Z: 1.5},
		models.Point{X: 2.4, Z: 1.5},
	)

	d.Dispatch(mission.Start)
	assert.Equal(t, task1.LookingForEntry, d.Current())
	waitFor(t, env, time.Second, func() bool { return env.Motion.Count("Takeoff") == 1 })

	entry := models.DetectedObject{
		ID:   4,
		Pose: models.Pose{Position: models.Point{X: 2, Z: 1.5}, Orientation: models.IdentityQuaternion()},
	}
	env.Perception.SetNearest(&entry)
	waitFor(t, env, time.Second, func() bool { return d.Is(task1.FlyingInside) || d.Is(task1.Exploring) })

	// точка подлёта с дальней от дрона стороны проёма
	waitFor(t, env, 250*time.Millisecond, func() bool { return len(env.Navigator.Goals()) == 1 })
	goal := env.Navigator.Goals()[0]
	assert.InDelta(t, 2.5, goal.Pose.Position.X, 1e-9)

	waitFor(t, env, 250*time.Millisecond, func() bool { return d.Is(task1.Exploring) })
	assert.Equal(t, 1, env.Walls.Count("AddWall"))
	waitFor(t, env, time.Second, func() bool { return env.Motion.Count("SetExploration") == 1 })

	env.Perception.SetCubes(
		models.DetectedObject{ID: 2, Pose: models.Pose{Position: models.Point{X: 5}}},
		models.DetectedObject{ID: 1, Pose: models.Pose{Position: models.Point{X: 3}}},
	)
	waitFor(t, env, time.Second, func() bool { return d.Is(task1.ReturningToStartPoint) })
	assert.Equal(t, []interface{}{models.Point{X: 3}, models.Point{X: 5}}, env.Bus.Published(models.TopicObjectCoordinates))

	waitFor(t, env, time.Second, func() bool { return len(env.Navigator.Goals()) == 2 })
	home := env.Navigator.Goals()[1]
	assert.Equal(t, models.Point{}, home.Pose.Position)
	assert.Equal(t, models.IdentityQuaternion(), home.Pose.Orientation)

	env.Navigator.Complete()
	assert.Equal(t, task1.Landing, d.Current())
	waitFor(t, env, time.Second, func() bool { return env.Motion.Count("Land") == 1 })

	assert.Equal(t, []interface{}{true, false}, []interface{}{
		env.Motion.Calls()[indexOf(env.Motion.Names(), "SetExploration", 0)].Args[0],
		env.Motion.Calls()[indexOf(env.Motion.Names(), "SetExploration", 1)].Args[0],
	})
}

func TestFailureWhileLookingForEntry(t *testing.T) {
	t.Parallel()

	env := missiontest.NewEnv()
	d := env.Start(task1.New(env.Deps(), config.DefaultMissionParams()))
	defer func() { _ = d.Run().Stop() }()

	d.Dispatch(mission.Start)
	require.True(t, d.Fail(mission.LowVoltageDetected))
	assert.Equal(t, task1.Landing, d.Current())
	waitFor(t, env, time.Second, func() bool { return env.Motion.Count("Land") == 1 })

	// поиск входа остановлен и больше не порождает событий
	entry := models.DetectedObject{ID: 1, Pose: models.Pose{Orientation: models.IdentityQuaternion()}}
	env.Perception.SetNearest(&entry)
	env.Clock.Add(3 * time.Second)
	assert.Equal(t, task1.Landing, d.Current())
}

func TestFailureWhileExploringReturnsHome(t *testing.T) {
	t.Parallel()

	env := missiontest.NewEnv()
	d := env.Start(task1.New(env.Deps(), config.DefaultMissionParams()))
	defer func() { _ = d.Run().Stop() }()

	d.Dispatch(mission.Start)
	entry := models.DetectedObject{ID: 1, Pose: models.Pose{Position: models.Point{X: 2}, Orientation: models.IdentityQuaternion()}}
	env.Telemetry.SetPath(models.Point{}, models.Point{X: 1.9}, models.Point{X: 2.5})
	env.Perception.SetNearest(&entry)
	waitFor(t, env, 250*time.Millisecond, func() bool { return d.Is(task1.Exploring) })

	require.True(t, d.Fail(mission.Timeout))
	assert.Equal(t, task1.ReturningToStartPoint, d.Current())
	waitFor(t, env, time.Second, func() bool { return len(env.Navigator.Goals()) == 2 })

	// возврат завершается и после аварии
	env.Navigator.Complete()
	assert.Equal(t, task1.Landing, d.Current())
}

func TestStopWaitsForReturnHome(t *testing.T) {
	t.Parallel()

	env := missiontest.NewEnv()
	d := env.Start(task1.New(env.Deps(), config.DefaultMissionParams()))

	d.Dispatch(mission.Start)
	entry := models.DetectedObject{ID: 1, Pose: models.Pose{Position: models.Point{X: 2}, Orientation: models.IdentityQuaternion()}}
	env.Telemetry.SetPath(models.Point{}, models.Point{X: 1.9}, models.Point{X: 2.5})
	env.Perception.SetNearest(&entry)
	waitFor(t, env, 250*time.Millisecond, func() bool { return d.Is(task1.Exploring) })

	require.True(t, d.Fail(mission.Timeout))
	waitFor(t, env, time.Second, func() bool { return env.Navigator.Waiting() })

	// ожидание цели входит в задачи выполнения и прерывается остановкой
	stopped := make(chan error, 1)
	go func() { stopped <- d.Run().Stop() }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, task1.ReturningToStartPoint, d.Current())
}

func indexOf(names []string, name string, nth int) int {
	for i, n := range names {
		if n == name {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	return -1
}
