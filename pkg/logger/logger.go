// Package logger builds the zerolog loggers used across the service.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// LogBuild collects the sink and level before the logger is made.
type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
	pretty bool
}

// LogData is the built logger and the file it owns, if any.
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

// New starts a builder writing to stdout at info level.
func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromWriter(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level by name; unknown names keep info.
func (build *LogBuild) Level(level string) *LogBuild {
	build.level = ParseLevel(level)
	return build
}

// Pretty switches to the human-readable console writer.
func (build *LogBuild) Pretty(pretty bool) *LogBuild {
	build.pretty = pretty
	return build
}

// Make opens the log file, if a path was set, and builds the logger.
func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stdout
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	if build.pretty {
		writer = zerolog.ConsoleWriter{Out: writer}
	}
	logData.Logger = zerolog.New(writer).Level(build.level).With().Timestamp().Logger()
	return
}

// Close releases the log file when the logger was built from a path.
func (logData *LogData) Close() error {
	if logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}

// Component returns a child logger tagged with the component name,
// e.g. "userCache", "followersQueue", "reactionWorker".
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Nop is a disabled logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel maps a level name to zerolog; unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "silent":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
