package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"task-manager-go/internal/bus"
	"task-manager-go/internal/client"
	"task-manager-go/internal/config"
	"task-manager-go/internal/database"
	"task-manager-go/internal/handler"
	"task-manager-go/internal/health"
	"task-manager-go/internal/logging"
	"task-manager-go/internal/mission"
	"task-manager-go/internal/repository"
	"task-manager-go/internal/service"
	"task-manager-go/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Получаем конфигурацию из переменных окружения
	cfg := config.LoadConfig()

	// Инициализируем логгер
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)
	logger.Info("Запуск Task Manager")

	params, err := config.LoadMissionParams(cfg.MissionParamsFile, logger)
	if err != nil {
		logger.Fatalf("Ошибка загрузки параметров миссий: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	// Подключаемся к брокеру топиков
	busClient := bus.NewClient(cfg.Bus.URL, logger)
	if err := busClient.Connect(ctx); err != nil {
		logger.Fatalf("Ошибка подключения к брокеру топиков: %v", err)
	}

	tel := telemetry.New(logger)
	if err := tel.Attach(busClient); err != nil {
		logger.Fatalf("Ошибка подписки на телеметрию: %v", err)
	}

	// Инициализируем клиенты внешних сервисов
	flight := client.NewFlightClient(cfg.FlightAPI.BaseURL, cfg.APITimeout(), clk, logger)
	perception := client.NewPerceptionClient(cfg.PerceptionAPI.BaseURL, cfg.APITimeout(), logger)

	healthServer := health.NewServer(logger)

	// Журнал миссий
	var (
		db            *gorm.DB
		journal       mission.Journal
		journalReader handler.JournalReader
	)
	if cfg.Journal.Enabled {
		logger.Info("Подключение к базе данных журнала...")
		db, err = database.Connect(cfg.DSN(), logger)
		if err != nil {
			logger.Fatalf("Ошибка подключения к базе данных: %v", err)
		}
		if err := database.Migrate(db, logger); err != nil {
			logger.Fatalf("Ошибка выполнения миграций: %v", err)
		}
		journalService := service.NewJournalService(repository.NewJournalRepository(db), clk, logger)
		journal = journalService
		journalReader = journalService
	}

	deps := mission.Deps{
		Motion:     flight,
		Navigator:  flight,
		Walls:      flight,
		Perception: perception,
		Telemetry:  tel,
		Publisher:  busClient,
		Subscriber: busClient,
		Clock:      clk,
		Logger:     logger,
	}
	probes := map[mission.Service]mission.Probe{
		mission.ServiceFlight:     flight,
		mission.ServicePerception: perception,
		mission.ServiceTelemetry:  tel,
	}
	missionService := service.NewMissionService(deps, params, probes, journal, healthServer, logger)

	// Настраиваем Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler.NewMissionHandler(missionService, journalReader, healthServer, logger).RegisterRoutes(router)
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Task Manager",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatalf("Ошибка запуска gRPC сервера: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return busClient.Run(gctx)
	})
	g.Go(func() error {
		logger.Infof("Сервер запущен на %s", cfg.Addr())
		logger.Infof("API доступно по адресу: http://%s/api/v1", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return healthServer.Serve(grpcListener)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown(httpServer, healthServer, missionService, busClient, db, logger)
		return nil
	})

	missionService.Announce()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Сервер остановлен с ошибкой: %v", err)
	}
	logger.Info("Task Manager остановлен")
}

func shutdown(
	httpServer *http.Server,
	healthServer *health.Server,
	missions *service.MissionService,
	busClient *bus.Client,
	db *gorm.DB,
	logger *logrus.Logger,
) {
	logger.Info("Остановка Task Manager")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warnf("Ошибка остановки HTTP сервера: %v", err)
	}

	if err := missions.Stop(); err != nil {
		logger.Warnf("Миссия остановлена с ошибкой: %v", err)
	}
	healthServer.Stop()
	busClient.Close()

	if err := database.Close(db); err != nil {
		logger.Warnf("Ошибка закрытия базы данных: %v", err)
	}
}

// corsMiddleware добавляет заголовки CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
