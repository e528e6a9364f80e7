package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/authip/internal/constants"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger

	logFile string
)

// Config holds logger configuration
type Config struct {
	Debug     bool
	ConfigDir string
	// Quiet keeps debug output off stderr, for the TUI which owns the terminal.
	Quiet bool
	// Format is text (default), json or logfmt.
	Format string
}

func formatter(name string) (log.Formatter, error) {
	switch name {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}
	return 0, fmt.Errorf("unknown log format %q", name)
}

// Init sets up the global logger. Records go to a rotating file under
// <ConfigDir>/logs, and to stderr as well in debug mode.
func Init(cfg Config) error {
	format, err := formatter(cfg.Format)
	if err != nil {
		return err
	}
	logDir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	logFile = filepath.Join(logDir, constants.AppName+".log")

	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    5, // megabytes
		MaxBackups: 5,
		MaxAge:     90, // days
		Compress:   true,
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	var writer io.Writer = fileWriter
	if cfg.Debug && !cfg.Quiet {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
		Formatter:       format,
	})

	return nil
}

// File returns the path of the active log file, or "" before Init.
func File() string {
	return logFile
}

// With returns a logger that tags every record with keyvals, e.g. the
// component that emitted it. Before Init it discards everything.
func With(keyvals ...any) *log.Logger {
	if Logger == nil {
		return log.New(io.Discard)
	}
	return Logger.With(keyvals...)
}

func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs msg and exits with status 1.
func Fatal(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
