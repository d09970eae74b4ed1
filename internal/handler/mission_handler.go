package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/service"
)

// MissionRunner запуск миссии и её состояние
type MissionRunner interface {
	StartMission(ctx context.Context, task int) (*service.MissionStatus, error)
	Status() (*service.MissionStatus, error)
}

// JournalReader чтение журнала миссий
type JournalReader interface {
	GetRun(id string) (*service.RunResponse, error)
	ListRuns(page, pageSize int) ([]service.RunResponse, int64, error)
}

// ServingChecker статус узла для проверки здоровья
type ServingChecker interface {
	Serving() bool
}

// MissionHandler обрабатывает HTTP запросы управления миссией
type MissionHandler struct {
	missions MissionRunner
	journal  JournalReader
	health   ServingChecker
	logger   *logrus.Logger
}

// NewMissionHandler создает новый экземпляр MissionHandler. journal равен nil,
// если журнал миссий отключён.
func NewMissionHandler(missions MissionRunner, journal JournalReader, health ServingChecker, logger *logrus.Logger) *MissionHandler {
	return &MissionHandler{
		missions: missions,
		journal:  journal,
		health:   health,
		logger:   logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *MissionHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/mission/start", h.StartMission)
		api.GET("/mission/status", h.GetStatus)
		api.GET("/missions", h.ListRuns)
		api.GET("/missions/:id", h.GetRun)
		api.GET("/health", h.CheckHealth)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// StartMission обрабатывает команду запуска миссии
func (h *MissionHandler) StartMission(c *gin.Context) {
	var req service.StartMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Ошибка парсинга запроса запуска миссии: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ожидается JSON вида {\"task\": 1}"})
		return
	}
	h.logger.Infof("Получен запрос на запуск миссии %d", req.Task)

	status, err := h.missions.StartMission(c.Request.Context(), req.Task)
	switch {
	case errors.Is(err, service.ErrInvalidTask):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный номер миссии"})
		return
	case errors.Is(err, service.ErrAlreadyStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "Миссия уже запущена"})
		return
	case err != nil:
		h.logger.Errorf("Ошибка запуска миссии: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Не удалось запустить миссию"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetStatus возвращает состояние текущей миссии
func (h *MissionHandler) GetStatus(c *gin.Context) {
	status, err := h.missions.Status()
	if errors.Is(err, service.ErrNotStarted) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Миссия не запущена"})
		return
	}
	if err != nil {
		h.logger.Errorf("Ошибка получения состояния миссии: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения состояния миссии"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListRuns возвращает список выполнений миссий с пагинацией
func (h *MissionHandler) ListRuns(c *gin.Context) {
	if !h.journalEnabled(c) {
		return
	}

	// Получаем параметры пагинации
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	runs, total, err := h.journal.ListRuns(page, size)
	if err != nil {
		h.logger.Errorf("Ошибка получения списка выполнений: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения списка выполнений"})
		return
	}

	c.JSON(http.StatusOK, service.ListRunsResponse{
		Runs:  runs,
		Total: total,
		Page:  page,
		Size:  size,
	})
}

// GetRun возвращает выполнение миссии по ID
func (h *MissionHandler) GetRun(c *gin.Context) {
	if !h.journalEnabled(c) {
		return
	}

	id := c.Param("id")
	run, err := h.journal.GetRun(id)
	if errors.Is(err, service.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Выполнение миссии не найдено"})
		return
	}
	if err != nil {
		h.logger.Errorf("Ошибка получения выполнения миссии: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения выполнения миссии"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// CheckHealth проверяет состояние узла
func (h *MissionHandler) CheckHealth(c *gin.Context) {
	if h.health != nil && !h.health.Serving() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "Миссия в состоянии ошибки",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Сервис работает нормально",
	})
}

func (h *MissionHandler) journalEnabled(c *gin.Context) bool {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Журнал миссий отключён"})
		return false
	}
	return true
}
