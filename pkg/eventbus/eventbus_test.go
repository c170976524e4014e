package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusChangedRoundTrip(t *testing.T) {
	change := StatusChanged{
		CompID:    7,
		Domain:    "geography",
		RootType:  "country",
		RootID:    1,
		NewStatus: 0,
		Types:     []string{"country", "state"},
		Affected:  4,
	}
	event, err := NewEvent(TypeStatusChanged, change)
	require.NoError(t, err)
	require.Equal(t, TypeStatusChanged, event.Type)
	require.NotZero(t, event.Timestamp)

	got, err := DecodeStatusChanged(&event)
	require.NoError(t, err)
	require.Equal(t, change, got)
}

func TestProducerRequiresDLQTopic(t *testing.T) {
	producer := NewKafkaProducer(KafkaProducerConfig{Brokers: []string{"localhost:9092"}, EventTopic: "events"})
	defer producer.Close()
	require.Error(t, producer.PublishDLQ(context.Background(), []byte("k"), []byte("v")))
}
