package logger

import (
	"time"
)

// Log is marshaled and written to every io.Writer the logging helper fans out to.
type Log struct {
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"created_at"`
	Level     string    `json:"level"`
	Msg       string    `json:"msg"`
}

// Logger provides logging methods for debug, info, warning, error and fatal.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
}
