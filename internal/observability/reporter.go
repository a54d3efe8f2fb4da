// Package observability reports swallowed failures of external collaborators.
package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// Reporter receives failures that were caught at a boundary and not returned
type Reporter interface {
	Capture(ctx context.Context, err error, tags map[string]string)
}

// LogReporter writes captured failures to the log only
type LogReporter struct{}

// Capture logs the failure with its tags
func (LogReporter) Capture(_ context.Context, err error, tags map[string]string) {
	event := log.Error().Err(err)
	for k, v := range tags {
		event = event.Str(k, v)
	}
	event.Msg("External call failed")
}

// SentryReporter sends captured failures to Sentry and logs them
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter initialises the Sentry client for dsn
func NewSentryReporter(dsn, environment string) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Capture sends the failure with its tags as a Sentry exception
func (r *SentryReporter) Capture(ctx context.Context, err error, tags map[string]string) {
	LogReporter{}.Capture(ctx, err, tags)

	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
