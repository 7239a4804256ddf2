// Package iologger sets up the default slog logger.
package iologger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/warno/warno/pkg/config"
)

// LogFileName is the name of the log file inside the log directory.
const LogFileName = "warno.log"

var logFile *os.File

// Init sets the default slog logger from cfg. With the "file" destination
// logs are appended to LogFileName in logDir. Calling Init again closes
// the previous log file.
func Init(logDir string, cfg config.LogConfig) error {
	writer, err := destination(logDir, cfg.Destination)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(NewHandler(writer, cfg)))
	return nil
}

func destination(logDir, dest string) (io.Writer, error) {
	switch dest {
	case "stdout":
		closeFile()
		return os.Stdout, nil
	case "file":
		path := filepath.Join(logDir, LogFileName)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, CreateLogFileError(path, err)
		}
		closeFile()
		logFile = f
		return f, nil
	default:
		closeFile()
		return os.Stderr, nil
	}
}

func closeFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// NewHandler creates a handler of the configured format writing to w.
// Unknown formats fall back to JSON.
func NewHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	level := parseLevel(cfg.Level)
	switch cfg.Format {
	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "tint":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
		})
	default:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
