package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/config"
	"example.com/backstage/services/events/internal/models"
)

// OccurrenceDocument is the searchable projection of one occurrence
type OccurrenceDocument struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	EventDetailID string    `json:"event_detail_id"`
	Title         string    `json:"title,omitempty"`
	EventType     string    `json:"event_type,omitempty"`
	Status        string    `json:"status,omitempty"`
	Location      string    `json:"location,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// NewOccurrenceDocument builds the document for rep. The detail fields are
// filled when rep.EventDetail is loaded.
func NewOccurrenceDocument(rep *models.EventRepetition) OccurrenceDocument {
	doc := OccurrenceDocument{
		ID:            rep.ID.String(),
		EventID:       rep.EventID.String(),
		EventDetailID: rep.EventDetailID.String(),
		Start:         rep.StartDateTime,
		End:           rep.EndDateTime,
	}
	if d := rep.EventDetail; d != nil {
		doc.Title = d.Title
		doc.EventType = string(d.EventType)
		doc.Status = string(d.Status)
		if d.Location != nil {
			doc.Location = *d.Location
		}
	}
	return doc
}

// Indexer keeps the occurrence projection in step with the store
type Indexer interface {
	SyncSeries(ctx context.Context, eventID uuid.UUID, docs []OccurrenceDocument) error
}

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	index  string
}

// NewIndexer creates an Elasticsearch indexer, or a no-op one when disabled
func NewIndexer(cfg config.ElasticConfig) (Indexer, error) {
	if !cfg.Enabled {
		log.Warn().Msg("Elasticsearch disabled, occurrence projection will not be maintained")
		return Noop(), nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{client: client, index: cfg.Index}, nil
}

// SyncSeries replaces every indexed occurrence of eventID with docs
func (c *ElasticClient) SyncSeries(ctx context.Context, eventID uuid.UUID, docs []OccurrenceDocument) error {
	if err := c.deleteSeries(ctx, eventID); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	body, err := bulkBody(docs)
	if err != nil {
		return err
	}

	req := esapi.BulkRequest{
		Index:   c.index,
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch bulk request")
	}
	defer res.Body.Close()

	if err := responseError(res, "bulk"); err != nil {
		return err
	}

	log.Debug().Str("event_id", eventID.String()).Int("occurrences", len(docs)).Msg("Series projection indexed")
	return nil
}

func (c *ElasticClient) deleteSeries(ctx context.Context, eventID uuid.UUID) error {
	query, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"event_id": eventID.String()},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal delete query")
	}

	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:     []string{c.index},
		Body:      bytes.NewReader(query),
		Conflicts: "proceed",
		Refresh:   &refresh,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete by query request")
	}
	defer res.Body.Close()

	// a missing index simply has nothing to delete
	if res.StatusCode == 404 {
		return nil
	}
	return responseError(res, "delete by query")
}

// bulkBody renders docs as newline delimited index actions
func bulkBody(docs []OccurrenceDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]interface{}{"index": map[string]interface{}{"_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return nil, errors.Wrap(err, "failed to encode bulk action")
		}
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, "failed to encode occurrence document")
		}
	}
	return buf.Bytes(), nil
}

func responseError(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	var e map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch error response")
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}

type noopIndexer struct{}

// Noop returns an indexer that does nothing
func Noop() Indexer {
	return noopIndexer{}
}

func (noopIndexer) SyncSeries(context.Context, uuid.UUID, []OccurrenceDocument) error { return nil }
