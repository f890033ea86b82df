package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/events/config"
)

func TestNewPublisherWithoutConnectionString(t *testing.T) {
	publisher, err := NewPublisher(config.AzureConfig{TopicName: "event-series"})
	require.NoError(t, err)

	assert.NoError(t, publisher.Publish(context.Background(), SeriesChange{Type: SeriesCreated}))
	assert.NoError(t, publisher.Close())
}

func TestSeriesChangeJSON(t *testing.T) {
	id := uuid.New()
	change := SeriesChange{
		Type:             SeriesUpdated,
		EventIDs:         []uuid.UUID{id},
		Strategy:         "cascade",
		AddedOccurrences: 4,
		OccurredAt:       time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(change)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "series.updated", decoded["type"])
	assert.Equal(t, []interface{}{id.String()}, decoded["eventIds"])
	assert.NotContains(t, decoded, "eventRepetitionId")
}
