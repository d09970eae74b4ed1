package service

import (
	"time"
)

// StartMissionRequest запрос на запуск миссии
type StartMissionRequest struct {
	Task int `json:"task" binding:"required"`
}

// MissionStatus состояние текущей миссии
type MissionStatus struct {
	RunID       string    `json:"run_id"`
	Task        int       `json:"task"`
	State       string    `json:"state"`
	Description string    `json:"description"`
	IsError     bool      `json:"is_error"`
	Operational bool      `json:"operational"`
	Failure     string    `json:"failure,omitempty"`
	Stopped     bool      `json:"stopped"`
	StartedAt   time.Time `json:"started_at"`
	Elapsed     string    `json:"elapsed"`
}

// RecordResponse запись журнала миссии
type RecordResponse struct {
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	IsError   bool      `json:"is_error"`
	CreatedAt time.Time `json:"created_at"`
}

// RunResponse ответ с информацией о выполнении миссии
type RunResponse struct {
	ID               string           `json:"id"`
	Task             int              `json:"task"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
	FinalState       string           `json:"final_state,omitempty"`
	TransitionsCount int              `json:"transitions_count"`
	ErrorsCount      int              `json:"errors_count"`
	Records          []RecordResponse `json:"records,omitempty"`
}

// ListRunsResponse ответ со списком выполнений миссий
type ListRunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}
