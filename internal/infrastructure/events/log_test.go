package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/event"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/events"
)

func TestLogPublisherLevels(t *testing.T) {
	var buf bytes.Buffer
	publisher := events.NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	entry := entity.NewPayoutEntry(uuid.New(), "acct_1", "req-1", 400, "usd")
	ctx := context.Background()

	require.NoError(t, publisher.Publish(ctx, event.TopicEntries, entry.ID().String(), event.NewEntryFinalized(entry)))
	require.NoError(t, publisher.Publish(ctx, event.TopicAlerts, entry.ID().String(),
		event.NewAlert(entry, event.SeverityFatal, errors.New("refund failed"), time.Now())))

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, event.TopicEntries, first["topic"])
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, event.TopicAlerts, second["topic"])

	payload, ok := second["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fatal", payload["severity"])
	assert.Equal(t, "refund failed", payload["reason"])
}
