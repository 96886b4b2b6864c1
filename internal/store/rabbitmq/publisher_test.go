package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCodec(t *testing.T) {
	body, err := EncodeJob("01JOB")
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"01JOB"}`, string(body))

	id, err := DecodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, "01JOB", id)

	_, err = DecodeJob([]byte(`{}`))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`nope`))
	assert.Error(t, err)
}
