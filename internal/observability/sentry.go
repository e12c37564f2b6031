package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry is a no-op when no DSN is configured, so local development runs
// without a Sentry project.
func InitSentry(cfg SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
}

func FlushSentry() {
	sentry.Flush(3 * time.Second)
}
