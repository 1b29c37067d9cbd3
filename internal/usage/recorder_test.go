package usage

import (
	"fmt"
	"testing"

	"github.com/mtzanidakis/swarmgate/internal/store"
)

type fakeLedger struct {
	inserts   []store.UsageRecord
	finalized []store.UsageRecord
	failOn    string
}

func (f *fakeLedger) InsertUsage(u *store.UsageRecord) error {
	if f.failOn == "insert" {
		return fmt.Errorf("disk full")
	}
	f.inserts = append(f.inserts, *u)
	return nil
}

func (f *fakeLedger) FinalizeUsage(u *store.UsageRecord) error {
	if f.failOn == "finalize" {
		return fmt.Errorf("disk full")
	}
	f.finalized = append(f.finalized, *u)
	return nil
}

type fakePublisher struct {
	topics []string
}

func (f *fakePublisher) PublishJSON(topic string, v any) error {
	f.topics = append(f.topics, topic)
	return nil
}

func TestBeginInsertsPending(t *testing.T) {
	ledger := &fakeLedger{}
	r := New(ledger, nil)

	r.Begin(&store.UsageRecord{ID: "r1"})

	if len(ledger.inserts) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(ledger.inserts))
	}
	if ledger.inserts[0].Status != store.UsagePending {
		t.Errorf("expected pending status, got %s", ledger.inserts[0].Status)
	}
}

func TestFinishPublishesEvent(t *testing.T) {
	ledger := &fakeLedger{}
	pub := &fakePublisher{}
	r := New(ledger, pub)

	r.Finish(&store.UsageRecord{ID: "r1", Status: store.UsageSuccess})

	if len(ledger.finalized) != 1 {
		t.Fatalf("expected 1 finalize, got %d", len(ledger.finalized))
	}
	if len(pub.topics) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.topics))
	}
}

func TestFinishSkipsPublishOnLedgerError(t *testing.T) {
	ledger := &fakeLedger{failOn: "finalize"}
	pub := &fakePublisher{}
	r := New(ledger, pub)

	// Best-effort: the error is swallowed, but no event goes out for a
	// record that was never finalized.
	r.Finish(&store.UsageRecord{ID: "r1", Status: store.UsageSuccess})

	if len(pub.topics) != 0 {
		t.Errorf("expected no events, got %d", len(pub.topics))
	}
}

func TestRecordFailureWritesFinalErrorRow(t *testing.T) {
	ledger := &fakeLedger{}
	r := New(ledger, nil)

	r.RecordFailure(&store.UsageRecord{ID: "r1", ErrorCode: "VALIDATION_ERROR"})

	if len(ledger.inserts) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(ledger.inserts))
	}
	if ledger.inserts[0].Status != store.UsageError {
		t.Errorf("expected error status, got %s", ledger.inserts[0].Status)
	}
	if len(ledger.finalized) != 0 {
		t.Errorf("failure rows must not go through finalize")
	}
}

func TestInsertErrorIsSwallowed(t *testing.T) {
	ledger := &fakeLedger{failOn: "insert"}
	r := New(ledger, nil)

	// Must not panic or propagate; recording is telemetry.
	r.Begin(&store.UsageRecord{ID: "r1"})
	r.RecordFailure(&store.UsageRecord{ID: "r2"})
}
