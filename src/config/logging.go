package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger 根据配置创建日志器，配置了日志文件时同时写入 stderr 和文件。
// 返回的 close 函数用于关闭日志文件。
func NewLogger(settings *Settings, stderr io.Writer) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(stderr)

	level := settings.Logging.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	closeFn := func() error { return nil }
	if settings.Logging.File != "" {
		f, err := os.OpenFile(settings.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(io.MultiWriter(stderr, f))
		closeFn = f.Close
	}

	return logger, closeFn, nil
}
