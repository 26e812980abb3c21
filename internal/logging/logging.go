package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/ui"
)

// Logger writes human-facing output through the ui package and, when a run
// log file is attached, mirrors every entry to the file with a level prefix.
type Logger struct {
	file  io.WriteCloser
	Level LogLevel
	mutex sync.Mutex
	isCLI bool // isCLI indicates the logger should render through the ui library.
}

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	SUCCESS
	WARN
	ERROR
	FATAL
)

func NewLogger(level LogLevel, isCLI bool) *Logger {
	return &Logger{Level: level, isCLI: isCLI}
}

func (l *Logger) Debug(msg string) {
	if l.Level <= DEBUG {
		if l.isCLI {
			ui.Debug("%s", msg)
		}
		l.toFile("DEBUG", msg, nil)
	}
}

func (l *Logger) Info(msg string) {
	if l.Level <= INFO {
		if l.isCLI {
			ui.Info("%s", msg)
		}
		l.toFile("INFO", msg, nil)
	}
}

func (l *Logger) Success(msg string) {
	if l.Level <= SUCCESS {
		if l.isCLI {
			ui.Success("%s", msg)
		}
		l.toFile("SUCCESS", msg, nil)
	}
}

func (l *Logger) Warn(msg string, err ...error) {
	if l.Level <= WARN {
		if l.isCLI {
			if len(err) > 0 && err[0] != nil {
				ui.Warn("%s: %v", msg, err[0])
			} else {
				ui.Warn("%s", msg)
			}
		}
		l.toFile("WARN", msg, err)
	}
}

func (l *Logger) Error(msg string, err ...error) {
	if l.Level <= ERROR {
		if l.isCLI {
			if len(err) > 0 && err[0] != nil {
				ui.Error("%s: %v", msg, err[0])
			} else {
				ui.Error("%s", msg)
			}
		}
		l.toFile("ERROR", msg, err)
	}
}

func (l *Logger) toFile(level, msg string, err []error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.file == nil {
		return
	}
	ts := time.Now().Format(time.RFC3339)
	if len(err) > 0 && err[0] != nil {
		fmt.Fprintf(l.file, "%s [%s] %s: %v\n", ts, level, msg, err[0])
	} else {
		fmt.Fprintf(l.file, "%s [%s] %s\n", ts, level, msg)
	}
}

// SetRunFileWriter attaches a per-run log file named after the run ID.
func (l *Logger) SetRunFileWriter(logsPath, runID string) error {
	if runID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	if err := os.MkdirAll(logsPath, 0o755); err != nil {
		return err
	}
	logFilePath := filepath.Join(logsPath, runID+".log")
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.file = file
	return nil
}

func (l *Logger) CloseLog() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.file != nil {
		fmt.Fprintln(l.file, "[LOG END]")
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func CleanOldLogs(logsPath string, maxAgeDays int) error {
	files, err := os.ReadDir(logsPath)
	if err != nil {
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(logsPath, file.Name()))
		}
	}
	return nil
}
