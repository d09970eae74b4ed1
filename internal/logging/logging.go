package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New создаёт JSON логгер с уровнем level. Если file не пуст, записи
// дублируются в файл с ротацией.
func New(level, file string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if file != "" {
		w := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		if lvl == logrus.DebugLevel || lvl == logrus.TraceLevel {
			w.MaxSize = 512
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, w))
	}

	if err != nil {
		logger.WithField("level", level).Warn("Некорректный уровень логирования, используется info")
	}

	return logger
}
