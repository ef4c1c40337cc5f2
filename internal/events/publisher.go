package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"pim-service/internal/models"
)

// Event subjects
const (
	SubjectProductCreated  = "pim.product.created"
	SubjectProductUpdated  = "pim.product.updated"
	SubjectProductDeleted  = "pim.product.deleted"
	SubjectImportCompleted = "pim.import.completed"
)

// ProductEvent is the audit payload published on product changes.
type ProductEvent struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	ProductID   string    `json:"productId"`
	ItemNo      string    `json:"itemNo"`
	ProductName string    `json:"productName"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// ImportEvent is published once per finished import run.
type ImportEvent struct {
	EventID    string    `json:"eventId"`
	TemplateID string    `json:"templateId"`
	Success    int       `json:"success"`
	Errors     int       `json:"errors"`
	Skipped    int       `json:"skipped"`
	Cancelled  bool      `json:"cancelled"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits audit events over NATS. A nil Publisher is valid and
// publishes nothing, so callers never need to branch on configuration.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS using NATS_URL. Returns (nil, nil) when
// NATS_URL is unset: eventing is optional.
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		logger.Info("NATS_URL not set, event publishing disabled")
		return nil, nil
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("pim-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "pim-events"),
	}, nil
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// PublishProductChange publishes a product lifecycle event.
func (p *Publisher) PublishProductChange(ctx context.Context, subject string, product *models.ProductRecord) {
	if p == nil {
		return
	}
	event := ProductEvent{
		EventID:     uuid.New().String(),
		EventType:   subject,
		ProductID:   product.ID.String(),
		ItemNo:      product.ItemNo,
		ProductName: product.Name,
		OccurredAt:  time.Now().UTC(),
	}
	p.publish(subject, event)
}

// PublishImportCompleted publishes the outcome of an import run.
func (p *Publisher) PublishImportCompleted(ctx context.Context, templateID uuid.UUID, report *models.ImportReport) {
	if p == nil {
		return
	}
	event := ImportEvent{
		EventID:    uuid.New().String(),
		TemplateID: templateID.String(),
		Success:    report.Success,
		Errors:     report.Errors,
		Skipped:    report.Skipped,
		Cancelled:  report.Cancelled,
		OccurredAt: time.Now().UTC(),
	}
	p.publish(SubjectImportCompleted, event)
}

// publish serializes and sends asynchronously so the request path never
// blocks on the broker.
func (p *Publisher) publish(subject string, event interface{}) {
	go func() {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).WithField("subject", subject).Error("Failed to marshal event")
			return
		}
		if err := p.conn.Publish(subject, data); err != nil {
			p.logger.WithError(err).WithField("subject", subject).Error("Failed to publish event")
			return
		}
		p.logger.WithField("subject", subject).Debug("Event published")
	}()
}
