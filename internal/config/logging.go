package config

import (
	"context"
	"fmt"
	"io"
	"os"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/okian/watchlog/pkg/logger"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// SetupLogging initializes the global logger from c. Output goes to LogFile
// when set, otherwise to fallback. The returned function closes the log file.
func (c *Config) SetupLogging(fallback io.Writer) (func() error, error) {
	closeFn := func() error { return nil }

	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON:
	default:
		return closeFn, fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	w := fallback
	if c.LogFile != "" {
		path, err := homedir.Expand(c.LogFile)
		if err != nil {
			return closeFn, fmt.Errorf("%w: log_file: %w", ErrInvalidConfig, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closeFn, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	if err := logger.Init(logger.WithWriter(w), logger.WithJSON(c.LogFormat == LogFormatJSON)); err != nil {
		_ = closeFn()
		return func() error { return nil }, fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(c.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", c.LogLevel), logger.Error(err))
	}
	return closeFn, nil
}
