package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
)

type buildEvent struct {
	Generation string `json:"generation"`
	Documents  int    `json:"documents"`
}

func TestDecodeJSON(t *testing.T) {
	ev, err := DecodeJSON[buildEvent]([]byte(`{"generation":"g1","documents":42}`))
	require.NoError(t, err)
	assert.Equal(t, buildEvent{Generation: "g1", Documents: 42}, ev)

	_, err = DecodeJSON[buildEvent]([]byte(`{"generation":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestProducerSatisfiesPublisher(t *testing.T) {
	var _ Publisher = (*Producer)(nil)
}

func TestEncodeSetsKeyAndContentType(t *testing.T) {
	msg, err := encode(Event{Key: "1c0ffee1", Value: buildEvent{Generation: "1c0ffee1", Documents: 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte("1c0ffee1"), msg.Key)
	assert.JSONEq(t, `{"generation":"1c0ffee1","documents":3}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "content-type", msg.Headers[0].Key)
	assert.Equal(t, contentType, string(msg.Headers[0].Value))
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	var p Producer
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}

func TestStoppedConsumerIsDegraded(t *testing.T) {
	var c Consumer
	got := c.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, got.Status)
	assert.Equal(t, "consumer not running", got.Message)
}
