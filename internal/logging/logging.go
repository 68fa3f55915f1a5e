// Package logging builds the arbor logger shared by every component.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"docsearch/internal/config"
)

const maxLogFileSize = 10 * 1024 * 1024

// New returns a logger writing to the console when console is set and to
// cfg.File when one is configured. The TUI runs without the console writer
// so log lines do not corrupt the screen.
func New(cfg config.LoggingConfig, console bool) arbor.ILogger {
	logger := arbor.NewLogger()

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         cfg.File,
				TimeFormat:       "15:04:05",
				MaxSize:          maxLogFileSize,
				MaxBackups:       3,
				TextOutput:       true,
				DisableTimestamp: false,
			})
		}
	}

	if console {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			TextOutput:       true,
			DisableTimestamp: false,
		})
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	return logger.WithLevelFromString(level)
}
