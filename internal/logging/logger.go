package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// Config selects log level and outputs ("console", "stdout", "file").
type Config struct {
	Level  string
	Output []string
	// Dir holds medrag.log when file output is enabled.
	Dir string
}

// New builds an arbor logger from cfg. With no outputs configured it logs to the console.
func New(cfg Config) arbor.ILogger {
	logger := arbor.NewLogger()

	hasFile, hasConsole := false, false
	for _, output := range cfg.Output {
		switch output {
		case "file":
			hasFile = true
		case "stdout", "console":
			hasConsole = true
		}
	}
	if !hasFile && !hasConsole {
		hasConsole = true
	}

	if hasFile {
		dir := cfg.Dir
		if dir == "" {
			dir = "logs"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("Warning: Failed to create logs directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   filepath.Join(dir, "medrag.log"),
				TimeFormat: "15:04:05",
				MaxSize:    10 * 1024 * 1024,
				MaxBackups: 3,
				TextOutput: true,
			})
		}
	}
	if hasConsole {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: "15:04:05",
			TextOutput: true,
		})
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	return logger.WithLevelFromString(level)
}

// Discard returns a logger with no writers, for tests and library callers
// that do not want output.
func Discard() arbor.ILogger {
	return arbor.NewLogger()
}
