package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/config"
)

// Change types published after a series mutation commits
const (
	SeriesCreated = "series.created"
	SeriesUpdated = "series.updated"
)

// SeriesChange describes a committed mutation of one or more series.
type SeriesChange struct {
	Type               string      `json:"type"`
	EventIDs           []uuid.UUID `json:"eventIds"`
	RepetitionID       *uuid.UUID  `json:"eventRepetitionId,omitempty"`
	Strategy           string      `json:"strategy,omitempty"`
	AddedOccurrences   int         `json:"addedOccurrences"`
	RemovedOccurrences int64       `json:"removedOccurrences"`
	ChangedBy          string      `json:"changedBy"`
	OccurredAt         time.Time   `json:"occurredAt"`
}

// Publisher sends series change notifications
type Publisher interface {
	Publish(ctx context.Context, change SeriesChange) error
	Close() error
}

// serviceBusPublisher implements Publisher on an Azure Service Bus topic
type serviceBusPublisher struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
	topic  string
}

// NewPublisher creates a Service Bus publisher. Without a connection string
// it returns a publisher that drops every change.
func NewPublisher(cfg config.AzureConfig) (Publisher, error) {
	if cfg.ConnectionString == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, series notifications disabled")
		return Noop(), nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.TopicName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusPublisher{
		client: client,
		sender: sender,
		topic:  cfg.TopicName,
	}, nil
}

// Publish sends change as a JSON message
func (p *serviceBusPublisher) Publish(ctx context.Context, change SeriesChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "failed to marshal series change")
	}

	contentType := "application/json"
	subject := change.Type
	msg := &azservicebus.Message{
		Body:        data,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"source": "events-service",
			"time":   change.OccurredAt.UTC().Format(time.RFC3339),
		},
	}

	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send series change to %s", p.topic)
	}
	return nil
}

// Close closes the sender and the client
func (p *serviceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}

type noopPublisher struct{}

// Noop returns a publisher that discards changes
func Noop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, SeriesChange) error { return nil }
func (noopPublisher) Close() error                                { return nil }
