package smoke

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/bookfinder/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging sends structured logs to stderr, and also to logFile when set,
// so PASS/FAIL lines on stdout stay clean. The returned func closes the file.
func SetupLogging(logFile, level string) (func() error, error) {
	var (
		w       io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, file)
		closeFn = file.Close
	}
	if err := logger.InitWith(w, logger.FormatText); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if level != "" {
		if err := logger.SetLevelString(level); err != nil {
			return nil, fmt.Errorf("failed to set log level: %w", err)
		}
	}
	return closeFn, nil
}
