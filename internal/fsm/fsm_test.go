package fsm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stIdle  State = "Idle"
	stWork  State = "Work"
	stPause State = "Pause"
	stDone  State = "Done"
	stError State = "Error"

	evGo    EventType = "Go"
	evPick  EventType = "Pick"
	evStop  EventType = "Stop"
	evNoise EventType = "Noise"
)

type pick struct{ target State }

func (pick) Type() EventType { return evPick }

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable("test", stIdle, stError,
		Rule{From: []State{stIdle}, On: evGo, To: []State{stWork}},
		Rule{From: []State{stWork}, On: evPick, To: []State{stWork, stPause, stDone}, Guard: func(ev Event) State {
			return ev.(pick).target
		}},
		Rule{From: []State{stWork, stPause}, On: evStop, To: []State{stDone}},
		Rule{From: []State{stIdle, stPause, stDone}, On: evNoise, To: []State{stIdle}, Guard: func(Event) State { return stIdle }},
	)
	require.NoError(t, err)
	return table
}

func TestNewTable(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicate rules", func(t *testing.T) {
		t.Parallel()
		_, err := NewTable("dup", stIdle, stError,
			Rule{From: []State{stIdle}, On: evGo, To: []State{stWork}},
			Rule{From: []State{stIdle}, On: evGo, To: []State{stDone}},
		)
		assert.Error(t, err)
	})

	t.Run("rejects branching without guard", func(t *testing.T) {
		t.Parallel()
		_, err := NewTable("branch", stIdle, stError,
			Rule{From: []State{stIdle}, On: evGo, To: []State{stWork, stDone}},
		)
		assert.Error(t, err)
	})

	t.Run("rejects rules leaving the error state", func(t *testing.T) {
		t.Parallel()
		_, err := NewTable("error", stIdle, stError,
			Rule{From: []State{stError}, On: evGo, To: []State{stIdle}},
		)
		assert.Error(t, err)
	})

	t.Run("collects states", func(t *testing.T) {
		t.Parallel()
		table := testTable(t)
		assert.ElementsMatch(t, []State{stIdle, stWork, stPause, stDone, stError}, table.States())
		assert.True(t, table.Handles(stPause, evStop))
		assert.False(t, table.Handles(stIdle, evStop))
	})
}

func TestTableNext(t *testing.T) {
	t.Parallel()
	table := testTable(t)

	to, err := table.Next(stIdle, Signal(evGo))
	require.NoError(t, err)
	assert.Equal(t, stWork, to)

	to, err = table.Next(stWork, pick{target: stPause})
	require.NoError(t, err)
	assert.Equal(t, stPause, to)

	to, err = table.Next(stWork, pick{target: stIdle})
	assert.ErrorIs(t, err, ErrGuardTarget)
	assert.Equal(t, stError, to)

	to, err = table.Next(stIdle, Signal(evStop))
	assert.ErrorIs(t, err, ErrNoTransition)
	assert.Equal(t, stError, to)

	to, err = table.Next(stError, Signal(evGo))
	assert.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, stError, to)
}

func TestMachineApply(t *testing.T) {
	t.Parallel()

	t.Run("sequence advances on state change only", func(t *testing.T) {
		t.Parallel()
		m := NewMachine(testTable(t))
		assert.Equal(t, stIdle, m.Current())

		tr := m.Apply(Signal(evGo))
		require.NoError(t, tr.Err)
		assert.True(t, tr.Changed())
		assert.Equal(t, uint64(1), tr.Seq)

		self := m.Apply(pick{target: stWork})
		assert.False(t, self.Changed())
		assert.Equal(t, tr.Seq, self.Seq)
		assert.True(t, m.Still(tr.Seq))

		next := m.Apply(Signal(evStop))
		assert.Equal(t, stDone, next.To)
		assert.False(t, m.Still(tr.Seq))
	})

	t.Run("protocol error moves to the error state for good", func(t *testing.T) {
		t.Parallel()
		m := NewMachine(testTable(t))

		tr := m.Apply(Signal(evStop))
		assert.True(t, tr.Protocol())
		assert.Equal(t, stError, tr.To)
		assert.True(t, m.Failed())

		again := m.Apply(Signal(evGo))
		assert.ErrorIs(t, again.Err, ErrTerminal)
		assert.False(t, again.Protocol())
		assert.False(t, again.Changed())
		assert.Equal(t, stError, m.Current())
	})

	t.Run("stale events are dropped", func(t *testing.T) {
		t.Parallel()
		m := NewMachine(testTable(t))
		started := m.Apply(Signal(evGo))
		m.Apply(pick{target: stPause})

		tr, ok := m.ApplyAt(started.Seq, Signal(evStop))
		assert.False(t, ok)
		assert.False(t, tr.Changed())
		assert.Equal(t, stPause, m.Current())

		tr, ok = m.ApplyAt(started.Seq+1, Signal(evStop))
		assert.True(t, ok)
		assert.Equal(t, stDone, tr.To)
	})

	t.Run("concurrent events are serialised", func(t *testing.T) {
		t.Parallel()
		m := NewMachine(testTable(t))
		m.Apply(Signal(evGo))

		var wg sync.WaitGroup
		results := make(chan Transition, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- m.Apply(Signal(evStop))
			}()
		}
		wg.Wait()
		close(results)

		changed := 0
		for tr := range results {
			if tr.Changed() && tr.To == stDone {
				changed++
			}
		}
		// ровно одно событие переводит Work -> Done, остальные падают в Error
		assert.Equal(t, 1, changed)
		assert.Equal(t, stError, m.Current())
	})
}
