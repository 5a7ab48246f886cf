package governance

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kikokikok/aeterna-sub004/internal/tracing"
)

// EventKind enumerates the governance event taxonomy (spec §4.3.6).
type EventKind string

const (
	EventUnitCreated       EventKind = "UnitCreated"
	EventUnitUpdated       EventKind = "UnitUpdated"
	EventUnitDeleted       EventKind = "UnitDeleted"
	EventRoleAssigned      EventKind = "RoleAssigned"
	EventRoleRemoved       EventKind = "RoleRemoved"
	EventPolicyUpdated     EventKind = "PolicyUpdated"
	EventPolicyDeleted     EventKind = "PolicyDeleted"
	EventDriftDetected     EventKind = "DriftDetected"
	EventKnowledgeProposed EventKind = "KnowledgeProposed"
	EventKnowledgeApproved EventKind = "KnowledgeApproved"
	EventKnowledgeRejected EventKind = "KnowledgeRejected"
)

// Event is a single append-only governance event (spec §4.3.6, §6.3).
type Event struct {
	TenantID string
	Kind     EventKind
	Actor    string
	Subject  string
	Sequence uint64
	At       time.Time
}

// EventLog is an append-only, per-tenant-partitioned event log with
// strictly monotonic sequence numbers (spec §5 "Event log sequence numbers
// are strictly monotonic per tenant"). It is held in process memory only:
// events are not persisted and do not survive a restart. The Engine and
// cmd/aeterna both use this concrete type directly.
type EventLog struct {
	mu       sync.Mutex
	sequence map[string]uint64
	events   []Event
}

func NewEventLog() *EventLog {
	return &EventLog{sequence: make(map[string]uint64)}
}

// Append assigns the next per-tenant sequence number and records the event.
func (l *EventLog) Append(tenantID string, kind EventKind, actor, subject string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sequence[tenantID]++
	ev := Event{
		TenantID: tenantID, Kind: kind, Actor: actor, Subject: subject,
		Sequence: l.sequence[tenantID], At: time.Now(),
	}
	l.events = append(l.events, ev)
	return ev
}

// AppendTraced wraps Append in a span: event emission is a named suspension
// point (spec §5), so each append shows up in a trace.
func (l *EventLog) AppendTraced(ctx context.Context, tenantID string, kind EventKind, actor, subject string) Event {
	_, span := tracing.Tracer().Start(ctx, "governance.event_append")
	defer span.End()
	span.SetAttributes(
		attribute.String("aeterna.tenant_id", tenantID),
		attribute.String("aeterna.event_kind", string(kind)),
	)
	return l.Append(tenantID, kind, actor, subject)
}

// Since returns events for tenantID with Sequence > afterSeq, in order
// (consumers dedupe by (tenant_id, sequence_number), spec §6.3).
func (l *EventLog) Since(tenantID string, afterSeq uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.TenantID == tenantID && ev.Sequence > afterSeq {
			out = append(out, ev)
		}
	}
	return out
}
