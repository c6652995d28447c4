package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/fitsync/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherEncodesTransition(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaPublisherWithWriter(w)

	tr := NewTransition(models.SourceWhoop, "sleep-7", OutcomeCreated)
	tr.CalendarEventID = "evt-9"
	require.NoError(t, pub.Publish(context.Background(), tr))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "whoop/sleep-7", string(msg.Key))

	var decoded Transition
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, tr.ID, decoded.ID)
	assert.Equal(t, OutcomeCreated, decoded.Outcome)
	assert.Equal(t, "evt-9", decoded.CalendarEventID)

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	pub := NewKafkaPublisherWithWriter(w)

	err := pub.Publish(context.Background(), NewTransition(models.SourceStrava, "1", OutcomeDeleted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Transition{}))
	assert.NoError(t, p.Close())
}
