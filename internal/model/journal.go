package model

import (
	"time"

	"gorm.io/gorm"
)

// MissionRun представляет одно выполнение миссии в журнале
type MissionRun struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Task       int        `gorm:"not null;index" json:"task"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	FinalState string     `gorm:"type:varchar(64)" json:"final_state"`

	// Общая статистика
	TransitionsCount int `gorm:"not null;default:0" json:"transitions_count"`
	ErrorsCount      int `gorm:"not null;default:0" json:"errors_count"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Связь с записями
	Records []MissionRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"records,omitempty"`
}

// RecordKindTransition тип записи о смене состояния
const RecordKindTransition = "transition"

// MissionRecord представляет запись журнала: переход, доменное событие или авария
type MissionRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     string `gorm:"type:varchar(36);not null;index" json:"run_id"`
	Kind      string `gorm:"type:varchar(32);not null" json:"kind"`
	FromState string `gorm:"type:varchar(64)" json:"from_state,omitempty"`
	ToState   string `gorm:"type:varchar(64)" json:"to_state,omitempty"`
	Event     string `gorm:"type:varchar(64)" json:"event"`
	Message   string `gorm:"type:text" json:"message"`
	IsError   bool   `gorm:"not null;default:false" json:"is_error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Обратная связь с выполнением
	Run MissionRun `gorm:"foreignKey:RunID;references:ID" json:"-"`
}

// TableName указывает имя таблицы для MissionRun
func (MissionRun) TableName() string {
	return "mission_runs"
}

// TableName указывает имя таблицы для MissionRecord
func (MissionRecord) TableName() string {
	return "mission_records"
}
