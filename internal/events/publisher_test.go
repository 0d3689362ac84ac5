package events

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopPublisher_DropsEvents(t *testing.T) {
	var buf bytes.Buffer
	p := NewNoopPublisher(zerolog.New(&buf).Level(zerolog.DebugLevel))

	require.NoError(t, p.Publish(context.Background(), "appointment.booked", []byte(`{"id":"1"}`)))
	require.NoError(t, p.Close())

	assert.Contains(t, buf.String(), "appointment.booked")
}

func TestNewRabbitMQPublisher_BadURL(t *testing.T) {
	_, err := NewRabbitMQPublisher("not-a-url", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect rabbitmq")
}
