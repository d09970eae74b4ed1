package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager-go/pkg/models"
)

func newLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestCallErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/bad":
			http.Error(w, "bad request", http.StatusBadRequest)
		case "/broken":
			w.Write([]byte("{"))
		}
	}))
	defer srv.Close()

	c := newAPIClient("test", srv.URL, time.Second, newLogger())
	ctx := context.Background()

	assert.ErrorIs(t, c.call(ctx, http.MethodGet, "/missing", nil, nil), ErrNotFound)

	err := c.call(ctx, http.MethodGet, "/bad", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad request")

	var out map[string]interface{}
	assert.Error(t, c.call(ctx, http.MethodGet, "/broken", nil, &out))
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, retryable(&APIError{StatusCode: http.StatusServiceUnavailable}))
	assert.False(t, retryable(&APIError{StatusCode: http.StatusBadRequest}))
	assert.False(t, retryable(ErrNotFound))
	assert.True(t, retryable(context.DeadlineExceeded))
}

func TestDoRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]string{})
	}))
	defer srv.Close()

	c := newAPIClient("test", srv.URL, time.Second, newLogger())
	c.SetRetryInterval(time.Millisecond)

	require.NoError(t, c.do(context.Background(), http.MethodPost, "/takeoff", nil, nil))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newAPIClient("test", srv.URL, time.Second, newLogger())
	c.SetRetryInterval(time.Millisecond)

	err := c.do(context.Background(), http.MethodPost, "/takeoff", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDoStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newAPIClient("test", srv.URL, time.Second, newLogger())
	c.SetRetryInterval(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.do(ctx, http.MethodPost, "/land", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	var ready atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !ready.Load() {
			writeJSON(w, models.HealthResponse{Status: "starting"})
			ready.Store(true)
			return
		}
		writeJSON(w, models.HealthResponse{Status: "healthy", Version: "1.0"})
	}))
	defer srv.Close()

	c := newAPIClient("test", srv.URL, time.Second, newLogger())
	c.SetRetryInterval(time.Millisecond)

	require.NoError(t, c.WaitReady(context.Background()))
	assert.True(t, ready.Load())
}

type flightServer struct {
	mu       sync.Mutex
	requests map[string][]json.RawMessage
	statuses []string
}

func (s *flightServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.requests == nil {
			s.requests = make(map[string][]json.RawMessage)
		}
		key := r.Method + " " + r.URL.Path
		s.requests[key] = append(s.requests[key], body)

		switch key {
		case "POST /goals":
			writeJSON(w, goalResponse{ID: "g1", Status: GoalActive})
		case "GET /goals/g1":
			status := GoalActive
			if len(s.statuses) > 0 {
				status, s.statuses = s.statuses[0], s.statuses[1:]
			}
			writeJSON(w, goalResponse{ID: "g1", Status: status})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}

func (s *flightServer) bodies(key string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func TestFlightClientCommands(t *testing.T) {
	t.Parallel()

	fs := &flightServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c := NewFlightClient(srv.URL, time.Second, clock.New(), newLogger())
	ctx := context.Background()

	require.NoError(t, c.Takeoff(ctx, 1.5))
	require.NoError(t, c.SpinAndWait(ctx, 1, 0.5, 0.1))
	require.NoError(t, c.SetExploration(ctx, true))
	require.NoError(t, c.AddWall(ctx, models.DetectedObject{ID: 7}))
	require.NoError(t, c.Land(ctx))

	var takeoff takeoffRequest
	require.NoError(t, json.Unmarshal(fs.bodies("POST /takeoff")[0], &takeoff))
	assert.Equal(t, 1.5, takeoff.Altitude)

	var spin spinRequest
	require.NoError(t, json.Unmarshal(fs.bodies("POST /spin")[0], &spin))
	assert.Equal(t, spinRequest{Laps: 1, Altitude: 0.5, AngularVelocity: 0.1, Wait: true}, spin)

	var exploration enableRequest
	require.NoError(t, json.Unmarshal(fs.bodies("POST /exploration")[0], &exploration))
	assert.True(t, exploration.Enabled)

	var wall wallRequest
	require.NoError(t, json.Unmarshal(fs.bodies("POST /walls")[0], &wall))
	assert.Equal(t, models.FrameMap, wall.FrameID)
	require.Len(t, wall.Objects, 1)
	assert.Equal(t, int64(7), wall.Objects[0].ID)

	assert.Len(t, fs.bodies("POST /land"), 1)
}

func TestCancelAllGoalsWaits(t *testing.T) {
	t.Parallel()

	fs := &flightServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	mock := clock.NewMock()
	c := NewFlightClient(srv.URL, time.Second, mock, newLogger())

	done := make(chan error, 1)
	go func() { done <- c.CancelAllGoals(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(fs.bodies("POST /goals/cancel")) == 1
	}, time.Second, time.Millisecond)

	select {
	case <-done:
		t.Fatal("CancelAllGoals returned before the settle time")
	case <-time.After(20 * time.Millisecond):
	}

	require.Eventually(t, func() bool {
		mock.Add(cancelSettleTime)
		select {
		case err := <-done:
			require.NoError(t, err)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestSendGoalCallsOnDone(t *testing.T) {
	t.Parallel()

	fs := &flightServer{statuses: []string{GoalActive, GoalSucceeded}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	mock := clock.NewMock()
	c := NewFlightClient(srv.URL, time.Second, mock, newLogger())

	var reached atomic.Bool
	goal := models.PoseStamped{FrameID: models.FrameMap, Pose: models.Pose{Position: models.Point{X: 1}}}
	done := make(chan error, 1)
	go func() {
		done <- c.SendGoal(context.Background(), goal, func() { reached.Store(true) })
	}()

	require.Eventually(t, func() bool {
		mock.Add(goalPollPeriod)
		return len(done) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, <-done)
	assert.True(t, reached.Load(), "onDone вызывается до возврата")

	var sent models.PoseStamped
	require.NoError(t, json.Unmarshal(fs.bodies("POST /goals")[0], &sent))
	assert.Equal(t, goal, sent)
}

func TestSendGoalAborted(t *testing.T) {
	t.Parallel()

	fs := &flightServer{statuses: []string{GoalAborted, GoalSucceeded}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	mock := clock.NewMock()
	c := NewFlightClient(srv.URL, time.Second, mock, newLogger())

	var reached atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- c.SendGoal(context.Background(), models.PoseStamped{}, func() { reached.Store(true) })
	}()

	require.Eventually(t, func() bool {
		mock.Add(goalPollPeriod)
		return len(done) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, <-done)
	assert.False(t, reached.Load())
	assert.Len(t, fs.bodies("GET /goals/g1"), 1)
}

func TestSendGoalReturnsOnCancel(t *testing.T) {
	t.Parallel()

	fs := &flightServer{statuses: []string{GoalActive}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c := NewFlightClient(srv.URL, time.Second, clock.NewMock(), newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.SendGoal(ctx, models.PoseStamped{}, func() { t.Error("цель не должна быть достигнута") })
	}()

	require.Eventually(t, func() bool { return len(fs.bodies("POST /goals")) == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("SendGoal did not return after cancel")
	}
}

func TestSendGoalWithoutOnDoneReturnsImmediately(t *testing.T) {
	t.Parallel()

	fs := &flightServer{statuses: []string{GoalActive}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c := NewFlightClient(srv.URL, time.Second, clock.NewMock(), newLogger())
	require.NoError(t, c.SendGoal(context.Background(), models.PoseStamped{}, nil))
	assert.Empty(t, fs.bodies("GET /goals/g1"))
}

func TestPerceptionClient(t *testing.T) {
	t.Parallel()

	var haveHoles atomic.Bool
	hole := models.DetectedObject{
		ID: 3,
		Pose: models.Pose{
			Position:    models.Point{X: 2, Z: 1},
			Orientation: models.IdentityQuaternion(),
		},
		Dimensions: models.Vector3{X: 0.8, Y: 0.7, Z: 0.05},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/holes/nearest":
			if !haveHoles.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, hole)
		case "/holes":
			writeJSON(w, objectsResponse{Objects: []models.DetectedObject{hole}})
		case "/holes/count":
			writeJSON(w, countResponse{Count: 1})
		case "/cubes/count":
			writeJSON(w, countResponse{Count: 2})
		case "/cubes":
			writeJSON(w, objectsResponse{Objects: []models.DetectedObject{{ID: 1}, {ID: 2}}})
		case "/transform/point":
			var req transformPointRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			req.Point.FrameID = req.Frame
			req.Point.Point.X += 1
			writeJSON(w, req.Point)
		case "/transform/pose":
			var req transformPoseRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			req.Pose.FrameID = req.Frame
			writeJSON(w, req.Pose)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewPerceptionClient(srv.URL, time.Second, newLogger())
	ctx := context.Background()

	nearest, err := c.NearestHole(ctx)
	require.NoError(t, err)
	assert.Nil(t, nearest)

	haveHoles.Store(true)
	nearest, err = c.NearestHole(ctx)
	require.NoError(t, err)
	require.NotNil(t, nearest)
	assert.Equal(t, int64(3), nearest.ID)
	assert.Equal(t, models.Vector3{X: 0.05, Y: 0.8, Z: 0.7}, nearest.Dimensions, "aperture depth goes along x")

	holes, err := c.Holes(ctx)
	require.NoError(t, err)
	require.Len(t, holes, 1)
	assert.Equal(t, *nearest, holes[0])

	n, err := c.CountHoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.CountCubes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cubes, err := c.Cubes(ctx)
	require.NoError(t, err)
	assert.Len(t, cubes, 2)

	p, err := c.TransformPoint(ctx, models.PointStamped{FrameID: "camera", Point: models.Point{X: 1}}, models.FrameMap)
	require.NoError(t, err)
	assert.Equal(t, models.PointStamped{FrameID: models.FrameMap, Point: models.Point{X: 2}}, p)

	pose, err := c.TransformPose(ctx, models.PoseStamped{FrameID: "camera"}, models.FrameMap)
	require.NoError(t, err)
	assert.Equal(t, models.FrameMap, pose.FrameID)
}
