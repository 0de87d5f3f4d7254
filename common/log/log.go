package log

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var logger = log.New(os.Stdout)

// InitLog 初始化日志，appName 作为前缀
func InitLog(appName string, logLevel string) {
	logger = log.New(os.Stdout)
	logger.SetPrefix(appName)
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.DateTime)
	logger.SetReportCaller(true)
	logger.SetLevel(parseLevel(logLevel))
}

func parseLevel(logLevel string) log.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func Fatal(format string, args ...any) {
	logger.Fatalf(format, args...)
}

func Info(format string, args ...any) {
	logger.Infof(format, args...)
}

func Warn(format string, args ...any) {
	logger.Warnf(format, args...)
}

func Error(format string, args ...any) {
	logger.Errorf(format, args...)
}

func Debug(format string, args ...any) {
	logger.Debugf(format, args...)
}
