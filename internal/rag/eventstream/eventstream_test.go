package eventstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishNotifiesSubscribers(t *testing.T) {
	m := NewMemory()
	var got []Event
	m.Subscribe(func(e Event) { got = append(got, e) })

	e := Event{Name: InProgress("retrieve"), JobID: "job-1"}
	require.NoError(t, m.Publish(context.Background(), e))

	require.Len(t, got, 1)
	assert.Equal(t, "rag_retrieve.in_progress", got[0].Name)
}

func TestMemoryRecordEventStripsEnvelopeFields(t *testing.T) {
	m := NewMemory()
	e := Event{
		Name:  Completed("mmr"),
		JobID: "job-1",
		Payload: map[string]any{
			"event":   "should be stripped",
			"job_id":  "should be stripped",
			"count":   5,
		},
	}
	require.NoError(t, m.RecordEvent(context.Background(), e))

	events := m.Events("job-1")
	require.Len(t, events, 1)
	_, hasEvent := events[0].Payload["event"]
	_, hasJobID := events[0].Payload["job_id"]
	assert.False(t, hasEvent)
	assert.False(t, hasJobID)
	assert.Equal(t, 5, events[0].Payload["count"])
}

func TestStageNameBuilders(t *testing.T) {
	assert.Equal(t, "rag_compress.in_progress", InProgress("compress"))
	assert.Equal(t, "rag_compress.completed", Completed("compress"))
}
