package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "task_manager"

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of applied state transitions",
		},
		[]string{"task", "from", "to"},
	)

	protocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of events that had no transition in the mission table",
		},
		[]string{"task", "state", "event"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of events dispatched to the mission state machine",
		},
		[]string{"task", "event"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of mission failures by kind",
		},
		[]string{"task", "kind"},
	)

	missionActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mission_active",
			Help:      "Whether a mission of the given task is running (0 or 1)",
		},
		[]string{"task"},
	)

	externalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Duration of calls to external services in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"service", "operation", "status"},
	)
)

// RecordTransition учитывает смену состояния миссии
func RecordTransition(task int, from, to string) {
	transitionsTotal.WithLabelValues(strconv.Itoa(task), from, to).Inc()
}

// RecordProtocolError учитывает событие без перехода в таблице
func RecordProtocolError(task int, state, event string) {
	protocolErrorsTotal.WithLabelValues(strconv.Itoa(task), state, event).Inc()
}

// RecordEvent учитывает событие, поданное на автомат
func RecordEvent(task int, event string) {
	eventsTotal.WithLabelValues(strconv.Itoa(task), event).Inc()
}

// RecordFailure учитывает аварийное событие миссии
func RecordFailure(task int, kind string) {
	failuresTotal.WithLabelValues(strconv.Itoa(task), kind).Inc()
}

// SetMissionActive отмечает запуск или завершение миссии
func SetMissionActive(task int, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	missionActive.WithLabelValues(strconv.Itoa(task)).Set(v)
}

// ObserveExternalCall учитывает длительность вызова внешнего сервиса
func ObserveExternalCall(service, operation string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	externalCallDuration.WithLabelValues(service, operation, status).Observe(elapsed.Seconds())
}
