// Package kafka ships audit events to a Kafka topic. It is write-only:
// downstream consumers own materialization and querying.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "electa/pkg/domain"
	audit "electa/pkg/platform/audit"
)

// Producer publishes a keyed record and waits for the broker ack.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Store implements audit.Store by producing JSON records keyed by account.
type Store struct {
	producer Producer
}

func New(producer Producer) *Store {
	return &Store{producer: producer}
}

type payload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	AccountID string `json:"account_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Email     string `json:"email,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Device    string `json:"device,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.NewString()
	p := payload{
		ID:        eventID,
		Category:  string(audit.AuditEvent(event.Action).Category()),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		Email:     event.Email,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
		Device:    event.Device,
	}
	key := eventID
	if !event.AccountID.IsNil() {
		p.AccountID = event.AccountID.String()
		key = p.AccountID
	}

	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	if err := s.producer.Produce(ctx, []byte(key), value); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByAccount is not supported; the topic is the system of record.
func (s *Store) ListByAccount(context.Context, id.AccountID) ([]audit.Event, error) {
	return nil, nil
}
