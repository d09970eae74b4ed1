package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config структура конфигурации приложения
type Config struct {
	Server struct {
		Port     int
		Host     string
		GRPCPort int
	}
	Bus struct {
		URL string // Адрес брокера топиков (websocket)
	}
	FlightAPI struct {
		BaseURL string // Сервисы полёта: взлёт, посадка, вращение, цели, стены
	}
	PerceptionAPI struct {
		BaseURL string // Сервисы восприятия: проёмы, кубы, преобразования СК
	}
	API struct {
		Timeout int // в секундах
	}
	Logging struct {
		Level string
		File  string // Пустая строка - только stdout
	}
	Journal struct {
		Enabled bool
	}
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	Environment       string
	MissionParamsFile string
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {
	cfg := &Config{}

	// Конфигурация сервера
	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.GRPCPort = getEnvInt("GRPC_PORT", 9090)

	// Транспорт топиков
	cfg.Bus.URL = getEnv("BUS_URL", "ws://localhost:9000/bus")

	// Внешние сервисы
	cfg.FlightAPI.BaseURL = getEnv("FLIGHT_API_BASE_URL", "http://localhost:8001")
	cfg.PerceptionAPI.BaseURL = getEnv("PERCEPTION_API_BASE_URL", "http://localhost:8002")
	cfg.API.Timeout = getEnvInt("API_TIMEOUT_SECONDS", 30)

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.File = getEnv("LOG_FILE", "")

	// Журнал миссий
	cfg.Journal.Enabled = getEnvBool("JOURNAL_ENABLED", false)
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "password")
	cfg.Database.Name = getEnv("DB_NAME", "task_manager")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Environment = getEnv("ENVIRONMENT", "development")
	cfg.MissionParamsFile = getEnv("MISSION_PARAMS_FILE", "")

	return cfg
}

// Addr возвращает адрес HTTP сервера
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr возвращает адрес gRPC сервера проверки здоровья
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// APITimeout возвращает таймаут запросов к внешним сервисам
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// DSN возвращает строку подключения к базе данных журнала
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Name, c.Database.Port, c.Database.SSLMode)
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool получает bool значение переменной окружения или возвращает значение по умолчанию
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
