package log

import (
	"github.com/natefinch/lumberjack"
)

// RotatingFile returns a log sink that rolls path over once it reaches
// maxSizeMB, keeping maxBackups old files. Close it on shutdown.
func RotatingFile(path string, maxSizeMB, maxBackups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		LocalTime:  true,
	}
}
