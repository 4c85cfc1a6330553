package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

// Recorder persists received events for audit and replay investigations.
type Recorder interface {
	Record(ctx context.Context, event *billing.Event) error
}

// ReceivedEvent is one audit row.
type ReceivedEvent struct {
	ID         uuid.UUID
	EventID    string
	EventType  billing.EventType
	Payload    []byte
	ReceivedAt time.Time
}

// MemoryRecorder keeps received events in memory, for tests.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []ReceivedEvent
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, event *billing.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ReceivedEvent{
		ID:         uuid.New(),
		EventID:    event.ID,
		EventType:  event.Type,
		Payload:    event.Raw,
		ReceivedAt: time.Now(),
	})
	return nil
}

// Events returns a snapshot of recorded events.
func (r *MemoryRecorder) Events() []ReceivedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ReceivedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// PostgresRecorder appends received events to the webhook_events table.
// Redelivered events share their provider event ID and are deduplicated by
// the unique index, so the audit log holds one row per distinct event.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a Postgres-backed recorder.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

func (r *PostgresRecorder) Record(ctx context.Context, event *billing.Event) error {
	const q = `
		INSERT INTO webhook_events (id, event_id, event_type, payload, received_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (event_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, q, uuid.New(), event.ID, event.Type, event.Raw); err != nil {
		return fmt.Errorf("record event %s: %w", event.ID, err)
	}
	return nil
}
