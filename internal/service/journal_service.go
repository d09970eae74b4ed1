package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/mission"
	"task-manager-go/internal/model"
	"task-manager-go/internal/repository"
)

// ErrRunNotFound выполнение миссии отсутствует в журнале
var ErrRunNotFound = repository.ErrRunNotFound

// JournalService сервис журнала миссий. Пишет ход миссии в базу данных
// и отдаёт его на чтение через HTTP API.
type JournalService struct {
	repo   repository.JournalRepository
	clock  clock.Clock
	logger *logrus.Logger
}

// NewJournalService создает новый сервис журнала миссий
func NewJournalService(repo repository.JournalRepository, clk clock.Clock, logger *logrus.Logger) *JournalService {
	return &JournalService{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

// BeginRun создаёт запись о выполнении миссии
func (s *JournalService) BeginRun(ctx context.Context, id uuid.UUID, task int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run := &model.MissionRun{
		ID:        id.String(),
		Task:      task,
		StartedAt: s.clock.Now(),
	}
	if err := s.repo.CreateRun(run); err != nil {
		return fmt.Errorf("failed to begin mission run: %w", err)
	}
	s.logger.WithField("run_id", run.ID).Debug("Выполнение миссии записано в журнал")
	return nil
}

// Record добавляет запись в журнал выполнения
func (s *JournalService) Record(ctx context.Context, id uuid.UUID, rec mission.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.repo.AddRecord(&model.MissionRecord{
		RunID:     id.String(),
		Kind:      rec.Kind,
		FromState: rec.From,
		ToState:   rec.To,
		Event:     rec.Event,
		Message:   rec.Message,
		IsError:   rec.IsError,
	})
	if err != nil {
		return fmt.Errorf("failed to add mission record: %w", err)
	}
	return nil
}

// FinishRun отмечает завершение выполнения с итоговым состоянием
func (s *JournalService) FinishRun(ctx context.Context, id uuid.UUID, finalState string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.repo.FinishRun(id.String(), finalState, s.clock.Now()); err != nil {
		return fmt.Errorf("failed to finish mission run: %w", err)
	}
	return nil
}

// GetRun получает выполнение миссии вместе с записями
func (s *JournalService) GetRun(id string) (*RunResponse, error) {
	s.logger.Infof("Получаем выполнение миссии %s из журнала", id)

	run, err := s.repo.GetRun(id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Errorf("Ошибка получения выполнения миссии: %v", err)
		return nil, fmt.Errorf("failed to get mission run: %w", err)
	}
	return modelToResponse(run), nil
}

// ListRuns получает список выполнений с пагинацией
func (s *JournalService) ListRuns(page, pageSize int) ([]RunResponse, int64, error) {
	s.logger.Infof("Получаем список выполнений миссий: страница %d, размер %d", page, pageSize)

	runs, total, err := s.repo.ListRuns(page, pageSize)
	if err != nil {
		s.logger.Errorf("Ошибка получения списка выполнений: %v", err)
		return nil, 0, fmt.Errorf("failed to list mission runs: %w", err)
	}

	responses := make([]RunResponse, len(runs))
	for i, run := range runs {
		responses[i] = *modelToResponse(run)
	}
	return responses, total, nil
}

// modelToResponse преобразует модель базы данных в ответ API
func modelToResponse(run *model.MissionRun) *RunResponse {
	resp := &RunResponse{
		ID:               run.ID,
		Task:             run.Task,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		FinalState:       run.FinalState,
		TransitionsCount: run.TransitionsCount,
		ErrorsCount:      run.ErrorsCount,
	}
	for _, rec := range run.Records {
		resp.Records = append(resp.Records, RecordResponse{
			Kind:      rec.Kind,
			From:      rec.FromState,
			To:        rec.ToState,
			Event:     rec.Event,
			Message:   rec.Message,
			IsError:   rec.IsError,
			CreatedAt: rec.CreatedAt,
		})
	}
	return resp
}
