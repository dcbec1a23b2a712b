package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// HookConfigPaths lists the candidate config file locations probed in order.
// The first file that exists and parses wins.
var HookConfigPaths = []string{
	"/etc/whm2bunny/config.json",
	"/usr/local/cpanel/whm2bunny/config.json",
	"/var/cpanel/whm2bunny/config.json",
}

// Hook defaults. The placeholder URL keeps the hook functional on a box where
// nothing has been configured yet.
const (
	DefaultWebhookURL = "http://localhost:9090/hook"
	DefaultSecret     = "change-me-in-production"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// HookSettings holds the resolved hook configuration. It is immutable once
// returned by ResolveHookSettings.
type HookSettings struct {
	WebhookURL string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Debug      bool
}

// hookFile is the JSON shape of an on-disk hook config file. Pointer fields
// distinguish "absent" from "zero" so a key missing from the file leaves the
// environment-derived value intact. Unrecognized keys are ignored.
type hookFile struct {
	WebhookURL *string `json:"webhook_url"`
	Secret     *string `json:"secret"`
	Timeout    *int    `json:"timeout"`
	MaxRetries *int    `json:"max_retries"`
	RetryDelay *int    `json:"retry_delay"`
	Debug      *bool   `json:"debug"`
}

// candidateOutcome records the result of probing one config path.
type candidateOutcome struct {
	path string
	file *hookFile
	err  error
}

// ResolveHookSettings builds HookSettings from WHM2BUNNY_* environment
// variables, then overlays the first loadable file from paths key-by-key.
// File errors are logged at debug level and skipped; resolution never fails.
func ResolveHookSettings(paths []string, logger *logrus.Logger) HookSettings {
	if len(paths) == 0 {
		paths = HookConfigPaths
	}

	s := HookSettings{
		WebhookURL: getEnv("WHM2BUNNY_WEBHOOK_URL", DefaultWebhookURL),
		Secret:     getEnv("WHM2BUNNY_SECRET", DefaultSecret),
		Timeout:    getEnvSeconds("WHM2BUNNY_TIMEOUT", DefaultTimeout),
		MaxRetries: getEnvInt("WHM2BUNNY_MAX_RETRIES", DefaultMaxRetries),
		RetryDelay: getEnvSeconds("WHM2BUNNY_RETRY_DELAY", DefaultRetryDelay),
		Debug:      getEnvBool("WHM2BUNNY_DEBUG", false),
	}

	for _, outcome := range probeCandidates(paths) {
		if outcome.err != nil {
			if logger != nil {
				logger.Debugf("skipping config %s: %v", outcome.path, outcome.err)
			}
			continue
		}
		s.overlay(outcome.file)
		if logger != nil {
			logger.Debugf("loaded config from %s", outcome.path)
		}
		break
	}

	if s.MaxRetries < 1 {
		s.MaxRetries = 1
	}
	return s
}

// probeCandidates attempts to load each path, producing an explicit outcome
// per candidate instead of swallowing failures.
func probeCandidates(paths []string) []candidateOutcome {
	outcomes := make([]candidateOutcome, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			outcomes = append(outcomes, candidateOutcome{path: path, err: err})
			continue
		}
		var f hookFile
		if err := json.Unmarshal(data, &f); err != nil {
			outcomes = append(outcomes, candidateOutcome{path: path, err: err})
			continue
		}
		outcomes = append(outcomes, candidateOutcome{path: path, file: &f})
	}
	return outcomes
}

func (s *HookSettings) overlay(f *hookFile) {
	if f.WebhookURL != nil {
		s.WebhookURL = *f.WebhookURL
	}
	if f.Secret != nil {
		s.Secret = *f.Secret
	}
	if f.Timeout != nil {
		s.Timeout = time.Duration(*f.Timeout) * time.Second
	}
	if f.MaxRetries != nil {
		s.MaxRetries = *f.MaxRetries
	}
	if f.RetryDelay != nil {
		s.RetryDelay = time.Duration(*f.RetryDelay) * time.Second
	}
	if f.Debug != nil {
		s.Debug = *f.Debug
	}
}
