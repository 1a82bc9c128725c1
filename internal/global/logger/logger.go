package logger

import "github.com/mtzgroup/tcpb-go/internal/adapter/logging"

var Logger = logging.NewZapLogger()

// SetLevel replaces the package logger with one at the given level
func SetLevel(level string) error {
	l, err := logging.NewZapLoggerLevel(level)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}
