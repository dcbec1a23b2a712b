package observability

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Hook log locations. The fallback is used when the primary directory cannot
// be created, e.g. when the hook runs as an unprivileged user in testing.
const (
	HookLogPath         = "/var/log/whm2bunny/hook.log"
	hookLogFallbackName = "whm2bunny_hook.log"
)

// NewHookLogger creates the logger used by the hook CLI. It appends
// timestamped lines to the hook log file and mirrors them to the standard
// streams so the invoking control panel captures output too. The returned
// path is the log file actually in use.
func NewHookLogger(debug bool) (*logrus.Logger, string) {
	path := HookLogPath
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		path = filepath.Join(os.TempDir(), hookLogFallbackName)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(file)
	}

	logger.AddHook(&mirrorHook{stdout: os.Stdout, stderr: os.Stderr})

	return logger, path
}

// mirrorHook copies log messages to the standard streams: warnings and
// errors to stderr, everything else to stdout.
type mirrorHook struct {
	stdout io.Writer
	stderr io.Writer
}

func (h *mirrorHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *mirrorHook) Fire(entry *logrus.Entry) error {
	w := h.stdout
	if entry.Level <= logrus.WarnLevel {
		w = h.stderr
	}
	if entry.Level == logrus.DebugLevel {
		fmt.Fprintf(w, "DEBUG: %s\n", entry.Message)
		return nil
	}
	fmt.Fprintln(w, entry.Message)
	return nil
}
