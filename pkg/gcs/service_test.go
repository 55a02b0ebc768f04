package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordingPath(t *testing.T) {
	assert.Equal(t, "recordings/t1/CA1/RE1.wav", RecordingPath("t1", "CA1", "RE1"))
	assert.Equal(t, "recordings/t1/CA1/CA1.wav", RecordingPath("t1", "CA1", ""))
}

func TestObjectURI(t *testing.T) {
	assert.Equal(t, "gs://bucket/recordings/a.wav", ObjectURI("bucket", "/recordings/a.wav"))
}
