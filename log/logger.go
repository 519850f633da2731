// Package log wraps go-logging with one named logger per renderer subsystem and a single
// process-wide level and sink.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

// Level is the verbosity threshold passed to SetLevel. Lower levels are more verbose.
type Level int

const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var levelNames = [...]string{
	Debug:   "debug",
	Info:    "info",
	Notice:  "notice",
	Warning: "warning",
	Error:   "error",
}

var backendLevels = [...]logging.Level{
	Debug:   logging.DEBUG,
	Info:    logging.INFO,
	Notice:  logging.NOTICE,
	Warning: logging.WARNING,
	Error:   logging.ERROR,
}

func (l Level) String() string {
	if l < Debug || l > Error {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel resolves a level name, case-insensitively. "warn" is accepted for Warning and the
// empty name selects Notice.
func ParseLevel(name string) (Level, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "":
		return Notice, nil
	case "warn":
		return Warning, nil
	default:
		for l, s := range levelNames {
			if s == n {
				return Level(l), nil
			}
		}
	}
	return Notice, fmt.Errorf("unknown log level %q", name)
}

// Every line carries the time, the subsystem name and the level.
var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var current logging.LeveledBackend

// Logger is what subsystems log through. It is satisfied by *logging.Logger.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// New returns the logger for a subsystem; name shows up in the module column.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// SetSink sends all output to sink, keeping the level already in effect.
func SetSink(sink io.Writer) {
	level := logging.NOTICE
	if current != nil {
		level = current.GetLevel("")
	}
	formatted := logging.NewBackendFormatter(logging.NewLogBackend(sink, "", 0), format)
	current = logging.AddModuleLevel(formatted)
	current.SetLevel(level, "")
	logging.SetBackend(current)
}

// SetLevel applies level to every subsystem. Unknown levels are ignored.
func SetLevel(level Level) {
	if level < Debug || level > Error {
		return
	}
	current.SetLevel(backendLevels[level], "")
}

func init() {
	SetSink(os.Stderr)
	SetLevel(Notice)
}
