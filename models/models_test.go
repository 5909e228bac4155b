package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatchRecord(t *testing.T) {
	record := NewDispatchRecord("req-1", "gemini", "gemini-1.5-flash", DispatchStatusDelivered)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "req-1", record.RequestID)
	assert.Equal(t, DispatchStatusDelivered, record.Status)
	assert.Nil(t, record.ErrorKind)
	assert.Nil(t, record.DeliveryForm)
	assert.WithinDuration(t, time.Now().UTC(), record.CreatedAt, time.Second)
	assert.Equal(t, "dispatch_records", record.TableName())
}

func TestDispatchRecord_Builders(t *testing.T) {
	record := NewDispatchRecord("req-2", "openai", "gpt-4o-mini", DispatchStatusFailed).
		WithError("generation_error").
		WithDelivery("file", 5000).
		WithLatency(1500 * time.Millisecond)

	require.NotNil(t, record.ErrorKind)
	assert.Equal(t, "generation_error", *record.ErrorKind)
	require.NotNil(t, record.DeliveryForm)
	assert.Equal(t, "file", *record.DeliveryForm)
	assert.Equal(t, 5000, record.ResponseLength)
	assert.Equal(t, 1500, record.LatencyMs)
}
