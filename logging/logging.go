package logging

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/cronoslabs/settlex/logger"
)

// Helper writes logs to io.Writers.
// Helper implements the logger.Logger interface.
// Writing is done concurrently without blocking the current thread.
type Helper struct {
	callOnErr func(error)
	writers   []io.Writer
}

// New creates new Helper.
func New(callOnErr func(error), writers ...io.Writer) Helper {
	return Helper{callOnErr: callOnErr, writers: writers}
}

// Debug writes debug log.
func (h Helper) Debug(msg string) {
	h.write(newLog("debug", msg))
}

// Info writes info log.
func (h Helper) Info(msg string) {
	h.write(newLog("info", msg))
}

// Warn writes warning log.
func (h Helper) Warn(msg string) {
	h.write(newLog("warn", msg))
}

// Error writes error log.
func (h Helper) Error(msg string) {
	h.write(newLog("error", msg))
}

// Fatal writes fatal log.
func (h Helper) Fatal(msg string) {
	h.write(newLog("fatal", msg))
}

func newLog(level, msg string) *logger.Log {
	return &logger.Log{
		ID:        newID(),
		Level:     level,
		Msg:       msg,
		CreatedAt: time.Now(),
	}
}

func newID() string {
	buf := make([]byte, 12)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (h Helper) write(l *logger.Log) {
	go func() {
		raw, err := json.Marshal(l)
		if err != nil {
			h.callOnErr(err)
			return
		}
		for _, w := range h.writers {
			if _, err := w.Write(raw); err != nil {
				h.callOnErr(err)
			}
		}
	}()
}
