// Package events publishes committed sync reports and identity anomalies.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pldft/internal/sanctions/models"
)

const (
	TypeSyncCompleted    = "sanctions.sync.completed"
	TypeIdentityConflict = "sanctions.identity.conflict"
)

// Envelope is the wire shape of every event.
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func newEnvelope(eventType, key string, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{Type: eventType, Key: key, OccurredAt: now.UTC(), Payload: raw}, nil
}

// MemoryPublisher records events in order. It backs single-process runs and
// tests.
type MemoryPublisher struct {
	mu        sync.Mutex
	syncs     []models.SyncReport
	conflicts []models.Conflict
	err       error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith makes every later publish return err.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryPublisher) PublishSync(_ context.Context, report models.SyncReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.syncs = append(p.syncs, report)
	return nil
}

func (p *MemoryPublisher) PublishConflict(_ context.Context, conflict models.Conflict) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.conflicts = append(p.conflicts, conflict)
	return nil
}

func (p *MemoryPublisher) Syncs() []models.SyncReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.SyncReport(nil), p.syncs...)
}

func (p *MemoryPublisher) Conflicts() []models.Conflict {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Conflict(nil), p.conflicts...)
}
