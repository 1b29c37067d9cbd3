// Package usage persists the per-call usage ledger. Recording is best-effort
// telemetry: a persistence failure here is logged and swallowed, never
// surfaced to the user-facing response.
package usage

import (
	"log/slog"

	"github.com/mtzanidakis/swarmgate/internal/natsbus"
	"github.com/mtzanidakis/swarmgate/internal/store"
)

// Ledger is the append-only sink for usage records.
type Ledger interface {
	InsertUsage(u *store.UsageRecord) error
	FinalizeUsage(u *store.UsageRecord) error
}

// Publisher emits usage events for live dashboards. Optional.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

type Recorder struct {
	ledger Ledger
	events Publisher
}

func New(ledger Ledger, events Publisher) *Recorder {
	return &Recorder{ledger: ledger, events: events}
}

// Begin inserts the pending row before the provider call.
func (r *Recorder) Begin(u *store.UsageRecord) {
	u.Status = store.UsagePending
	if err := r.ledger.InsertUsage(u); err != nil {
		slog.Error("usage insert failed", "id", u.ID, "error", err)
	}
}

// Finish moves a pending record to its final status. Called exactly once per
// request, from the success path or whichever failure path fired.
func (r *Recorder) Finish(u *store.UsageRecord) {
	if err := r.ledger.FinalizeUsage(u); err != nil {
		slog.Error("usage finalize failed", "id", u.ID, "error", err)
		return
	}
	r.publish(u)
}

// RecordFailure writes a single final error row for requests that failed
// before the provider call, so no pending record is ever left dangling.
func (r *Recorder) RecordFailure(u *store.UsageRecord) {
	u.Status = store.UsageError
	if err := r.ledger.InsertUsage(u); err != nil {
		slog.Error("usage insert failed", "id", u.ID, "error", err)
		return
	}
	r.publish(u)
}

func (r *Recorder) publish(u *store.UsageRecord) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishJSON(natsbus.TopicUsageFlushed, u); err != nil {
		slog.Warn("usage event publish failed", "id", u.ID, "error", err)
	}
}
