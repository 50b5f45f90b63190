package scheduler

import (
	"fmt"

	"github.com/MrSnakeDoc/esched/internal/logger"
)

// cronLogger routes gocron's key/value logging into the service logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, cronFields(args)...) }
func (l cronLogger) Info(msg string, args ...any)  { l.log.Info(msg, cronFields(args)...) }
func (l cronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, cronFields(args)...) }
func (l cronLogger) Error(msg string, args ...any) { l.log.Error(msg, cronFields(args)...) }

func cronFields(args []any) []logger.Field {
	fields := make([]logger.Field, 0, len(args)/2+1)
	for i := 0; i+1 < len(args); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(args[i]), args[i+1]))
	}
	if len(args)%2 == 1 {
		fields = append(fields, logger.Any("arg", args[len(args)-1]))
	}
	return fields
}
