package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"itvhub/pkg/paths"
)

var Log *slog.Logger

var (
	logFile   *os.File
	logFileMu sync.Mutex
)

// Init initializes the global logger.
// Output goes to stdout and, when the data directory is writable, to a daily
// log file itvhub-YYYY-MM-DD.log alongside the state file.
func Init(levelStr string) {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout

	dataDir := paths.GetDataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
	} else {
		dateStr := time.Now().Format("2006-01-02")
		logFilePath := filepath.Join(dataDir, fmt.Sprintf("itvhub-%s.log", dateStr))
		logFileMu.Lock()
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			logFile = f
			out = io.MultiWriter(os.Stdout, f)
		}
		logFileMu.Unlock()
	}

	Log = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(Log)
}

// ensure returns a usable logger even when Init was never called (tests).
func ensure() *slog.Logger {
	if Log == nil {
		Log = slog.Default()
	}
	return Log
}

func Debug(msg string, args ...any) { ensure().Debug(msg, args...) }

func Info(msg string, args ...any) { ensure().Info(msg, args...) }

func Warn(msg string, args ...any) { ensure().Warn(msg, args...) }

func Error(msg string, args ...any) { ensure().Error(msg, args...) }
