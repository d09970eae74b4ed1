package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"task-manager-go/internal/model"
)

// ErrRunNotFound выполнение миссии не найдено
var ErrRunNotFound = errors.New("mission run not found")

// JournalRepository интерфейс для работы с журналом миссий
type JournalRepository interface {
	CreateRun(run *model.MissionRun) error
	AddRecord(rec *model.MissionRecord) error
	FinishRun(id string, finalState string, finishedAt time.Time) error
	GetRun(id string) (*model.MissionRun, error)
	ListRuns(page, pageSize int) ([]*model.MissionRun, int64, error)
}

// journalRepository реализация JournalRepository
type journalRepository struct {
	db *gorm.DB
}

// NewJournalRepository создает новый instance JournalRepository
func NewJournalRepository(db *gorm.DB) JournalRepository {
	return &journalRepository{
		db: db,
	}
}

// CreateRun создает запись о выполнении миссии
func (r *journalRepository) CreateRun(run *model.MissionRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create mission run: %w", err)
	}
	return nil
}

// AddRecord добавляет запись журнала и обновляет счётчики выполнения
func (r *journalRepository) AddRecord(rec *model.MissionRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		rec.ID = 0 // Обнуляем ID для auto-increment
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create mission record: %w", err)
		}

		var column string
		switch {
		case rec.IsError:
			column = "errors_count"
		case rec.Kind == model.RecordKindTransition:
			column = "transitions_count"
		default:
			return nil
		}
		result := tx.Model(&model.MissionRun{}).
			Where("id = ?", rec.RunID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if result.Error != nil {
			return fmt.Errorf("failed to update mission run counters: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRunNotFound
		}
		return nil
	})
}

// FinishRun отмечает завершение выполнения
func (r *journalRepository) FinishRun(id string, finalState string, finishedAt time.Time) error {
	result := r.db.Model(&model.MissionRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"final_state": finalState,
			"finished_at": finishedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish mission run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun получает выполнение миссии по ID вместе с записями
func (r *journalRepository) GetRun(id string) (*model.MissionRun, error) {
	var run model.MissionRun
	err := r.db.Preload("Records", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get mission run: %w", err)
	}
	return &run, nil
}

// ListRuns получает список выполнений с пагинацией, без записей
func (r *journalRepository) ListRuns(page, pageSize int) ([]*model.MissionRun, int64, error) {
	var runs []*model.MissionRun
	var total int64

	// Подсчитываем общее количество
	if err := r.db.Model(&model.MissionRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count mission runs: %w", err)
	}

	offset := (page - 1) * pageSize
	err := r.db.
		Offset(offset).
		Limit(pageSize).
		Order("started_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list mission runs: %w", err)
	}

	return runs, total, nil
}
