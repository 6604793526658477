package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	StreamCustody = "CUSTODY_EVENTS"

	SubjectEngagementOpened    = "custody.engagement.opened"
	SubjectEngagementCompleted = "custody.engagement.completed"
	SubjectEngagementFailed    = "custody.engagement.failed"
	SubjectCardAssigned        = "custody.card.assigned"
	SubjectCardBlocked         = "custody.card.blocked"
	SubjectCardRevealed        = "custody.card.revealed"
	SubjectWithdrawalBlocked   = "custody.withdrawal.blocked"
)

// CustodyEvent is the wire format for custody events consumed by the
// downstream reporting and statistics services.
type CustodyEvent struct {
	EventID    string                 `json:"eventId"`
	Subject    string                 `json:"subject"`
	EntityID   string                 `json:"entityId"`
	ActorID    string                 `json:"actorId,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Publisher publishes custody events to NATS JetStream. The service works
// without it: a nil Publisher drops events silently.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the custody stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("card-custody-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamCustody,
		Subjects: []string{"custody.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		logger.WithError(err).Warn("Failed to ensure custody stream")
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

// Publish sends a custody event; failures are logged, never fatal
func (p *Publisher) Publish(subject string, entityID uuid.UUID, actorID *uuid.UUID, data map[string]interface{}) {
	if p == nil {
		return
	}

	event := CustodyEvent{
		EventID:    uuid.NewString(),
		Subject:    subject,
		EntityID:   entityID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if actorID != nil {
		event.ActorID = actorID.String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal custody event")
		return
	}

	if _, err := p.js.Publish(subject, payload); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish custody event")
	}
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p != nil && p.nc != nil && p.nc.IsConnected()
}

// Close drains the connection
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
