package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/event"
)

func TestEncode(t *testing.T) {
	item, err := entity.NewContentItem(entity.ContentDraft{
		OwnerID:    uuid.New(),
		Title:      "dunes",
		Type:       entity.ContentPhoto,
		ContentURL: "https://cdn.example.com/dunes.jpg",
		Price:      250,
	})
	require.NoError(t, err)

	entry := entity.NewPurchaseEntry(uuid.New(), entity.BillingProfile{CustomerRef: "cus_1", PaymentMethodRef: "pm_1"}, item, 25, "usd")
	require.NoError(t, entry.Complete(time.Now()))

	msg, err := encode(event.TopicEntries, entry.ID().String(), event.NewEntryFinalized(entry))
	require.NoError(t, err)

	assert.Equal(t, event.TopicEntries, msg.Topic)
	assert.Equal(t, entry.ID().String(), string(msg.Key))
	assert.False(t, msg.Time.IsZero())

	var decoded event.EntryFinalized
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "completed", decoded.Status)
	assert.Equal(t, "2.50", decoded.Amount)
	assert.Equal(t, "0.25", decoded.Fee)
	assert.Equal(t, item.ID().String(), decoded.ContentID)
}

func TestEncodeRejectsUnmarshalablePayload(t *testing.T) {
	_, err := encode(event.TopicAlerts, "k", make(chan int))
	require.Error(t, err)
}
