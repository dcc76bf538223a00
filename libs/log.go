package libs

import (
	"github.com/astaxie/beego/logs"
)

// Logger is what any gokms library should take.
type Logger interface {
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

// NewLogger returns the default beego logger, or l itself when it is non-nil.
func NewLogger(l Logger) Logger {
	if l != nil {
		return l
	}
	return logs.NewLogger()
}
