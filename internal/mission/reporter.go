package mission

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/fsm"
	"task-manager-go/internal/metrics"
	"task-manager-go/pkg/models"
)

// Типы записей журнала
const (
	RecordTransition    = "transition"
	RecordProtocolError = "protocol_error"
	RecordEvent         = "event"
	RecordFailure       = "failure"
)

const journalTimeout = 5 * time.Second

// Reporter сообщает о ходе миссии: лог, топики статуса и событий, журнал, метрики
type Reporter struct {
	publisher Publisher
	journal   Journal
	clock     clock.Clock
	logger    *logrus.Logger
}

// NewReporter создаёт репортёр. journal может быть nil.
func NewReporter(publisher Publisher, journal Journal, clk clock.Clock, logger *logrus.Logger) *Reporter {
	return &Reporter{
		publisher: publisher,
		journal:   journal,
		clock:     clk,
		logger:    logger,
	}
}

// Transition сообщает о применении события к автомату
func (r *Reporter) Transition(run *Run, tr fsm.Transition, description string) {
	event := string(tr.Event.Type())
	log := r.logger.WithFields(logrus.Fields{
		"run_id": run.ID.String(),
		"task":   run.Task,
		"from":   tr.From,
		"to":     tr.To,
		"event":  event,
		"seq":    tr.Seq,
	})

	metrics.RecordEvent(run.Task, event)

	switch {
	case errors.Is(tr.Err, fsm.ErrTerminal):
		log.Warn("Событие проигнорировано: миссия в состоянии ошибки")
		return
	case tr.Err != nil:
		log.WithError(tr.Err).Error("Недопустимое событие, миссия переведена в состояние ошибки и не может быть продолжена")
		metrics.RecordProtocolError(run.Task, string(tr.From), event)
		r.status(description, true)
		r.publishEvent(run, event, tr, map[string]interface{}{"error": tr.Err.Error()})
		r.record(run, Record{
			Kind:    RecordProtocolError,
			From:    string(tr.From),
			To:      string(tr.To),
			Event:   event,
			Message: tr.Err.Error(),
			IsError: true,
		})
		return
	case !tr.Changed():
		log.Debug("Событие не меняет состояние")
		return
	}

	log.Info(description)
	metrics.RecordTransition(run.Task, string(tr.From), string(tr.To))
	r.status(description, false)
	r.publishEvent(run, event, tr, nil)
	r.record(run, Record{
		Kind:    RecordTransition,
		From:    string(tr.From),
		To:      string(tr.To),
		Event:   event,
		Message: description,
	})
}

// Event сообщает о доменном событии, не связанном со сменой состояния
func (r *Reporter) Event(run *Run, name, message string, details map[string]interface{}) {
	r.logger.WithFields(logrus.Fields{
		"run_id":  run.ID.String(),
		"task":    run.Task,
		"event":   name,
		"details": details,
	}).Info(message)

	r.publishEvent(run, name, fsm.Transition{}, details)
	r.record(run, Record{Kind: RecordEvent, Event: name, Message: message})
}

// Failure сообщает об аварийном событии
func (r *Reporter) Failure(run *Run, kind FailureKind) {
	r.logger.WithFields(logrus.Fields{
		"run_id": run.ID.String(),
		"task":   run.Task,
		"kind":   kind,
	}).Warn("Аварийное событие, миссия прерывается")

	metrics.RecordFailure(run.Task, string(kind))
	r.publishEvent(run, string(EventFailure), fsm.Transition{}, map[string]interface{}{"kind": string(kind)})
	r.record(run, Record{Kind: RecordFailure, Event: string(kind), Message: "failure", IsError: true})
}

func (r *Reporter) status(description string, isError bool) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Publish(models.TopicStatus, models.DroneStatus{State: description, IsError: isError})
	if err != nil {
		r.logger.WithError(err).Warn("Не удалось опубликовать статус дрона")
	}
}

func (r *Reporter) publishEvent(run *Run, name string, tr fsm.Transition, details map[string]interface{}) {
	if r.publisher == nil {
		return
	}
	msg := models.MissionEvent{
		RunID:   run.ID.String(),
		Task:    run.Task,
		Event:   name,
		From:    string(tr.From),
		To:      string(tr.To),
		Details: details,
		Time:    r.clock.Now(),
	}
	if err := r.publisher.Publish(models.TopicEvents, msg); err != nil {
		r.logger.WithError(err).Warn("Не удалось опубликовать событие миссии")
	}
}

func (r *Reporter) record(run *Run, rec Record) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := r.journal.Record(ctx, run.ID, rec); err != nil {
		r.logger.WithError(err).Warn("Не удалось записать событие в журнал миссии")
	}
}
