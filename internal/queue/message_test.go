package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJobMessage(t *testing.T) {
	body, err := EncodeJobMessage(&JobMessage{
		JobType:       JobTypeTranslate,
		CorrelationID: "abc-123",
		Payload: map[string]string{
			"text":        "hello",
			"target_lang": "de",
		},
	})
	require.NoError(t, err)

	msg, err := DecodeJobMessage(body)
	require.NoError(t, err)
	assert.Equal(t, JobTypeTranslate, msg.JobType)
	assert.Equal(t, "abc-123", msg.CorrelationID)
	assert.Equal(t, "hello", msg.Payload["text"])
}

func TestDecodeJobMessageRejectsMissingJobType(t *testing.T) {
	_, err := DecodeJobMessage([]byte(`{"payload":{"text":"hi"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job_type")
}

func TestDecodeJobMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeJobMessage([]byte("not json"))
	require.Error(t, err)
}

func TestDecodeResponseMessageRejectsMissingCorrelationID(t *testing.T) {
	_, err := DecodeResponseMessage([]byte(`{"result":{"generated_text":"x"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation_id")
}

func TestResponseMessageFailed(t *testing.T) {
	ok := &ResponseMessage{CorrelationID: "id", Result: map[string]string{"k": "v"}}
	assert.False(t, ok.Failed())

	failed := &ResponseMessage{CorrelationID: "id", Error: "model not available"}
	assert.True(t, failed.Failed())
}
