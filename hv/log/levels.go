package log

import (
	"gopkg.in/Sirupsen/logrus.v0"
)

type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func init() {
	// Per-module gating happens before logrus is ever reached, so logrus
	// itself must let everything through.
	logrus.SetLevel(logrus.DebugLevel)
}

// A LogContext contributes extra fields to every log line (e.g. the current
// vcpu and its program counter). Contexts are global and must be registered
// at startup.
type LogContext interface {
	AddLogContext(e *EntryZ)
}

var contexts []LogContext

func RegisterContext(c LogContext) {
	contexts = append(contexts, c)
}

func UnregisterAllContexts() {
	contexts = nil
}
