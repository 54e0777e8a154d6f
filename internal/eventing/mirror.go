package eventing

import (
	"log/slog"
	"strings"
	"time"

	"monitor-dashboard/internal/observability/metrics"
	"monitor-dashboard/internal/refresh"
)

// Publisher is the minimal publish interface of a message bus.
type Publisher interface {
	Publish(subject string, payload any) error
}

// SnapshotEvent is the payload mirrored for every published table snapshot.
type SnapshotEvent[T any] struct {
	Table      string    `json:"table"`
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at"`
	Records    []T       `json:"records"`
	Error      string    `json:"error,omitempty"`
}

// Subject joins a subject prefix and table name with a dot.
func Subject(prefix, table string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return table
	}
	return prefix + "." + table
}

// Mirror returns a poller hook that publishes each snapshot on subject. Publish
// failures are logged and never affect the poller.
func Mirror[T any](pub Publisher, subject, eventType, table string, logger *slog.Logger) func(refresh.Snapshot[T]) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(snap refresh.Snapshot[T]) {
		if pub == nil {
			return
		}
		event := SnapshotEvent[T]{
			Table:      table,
			Generation: snap.Generation,
			FetchedAt:  snap.FetchedAt,
			Records:    snap.Records,
		}
		if snap.Err != nil {
			event.Error = snap.Err.Error()
		}
		env, err := BuildEnvelope(eventType, event, Meta{})
		if err != nil {
			metrics.IncMirrorPublish(subject, metrics.ResultError)
			logger.Warn("mirror envelope failed", "subject", subject, "error", err)
			return
		}
		if err := pub.Publish(subject, env); err != nil {
			metrics.IncMirrorPublish(subject, metrics.ResultError)
			logger.Warn("mirror publish failed", "subject", subject, "generation", snap.Generation, "error", err)
			return
		}
		metrics.IncMirrorPublish(subject, metrics.ResultSuccess)
	}
}
