package walk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStepTask(t *testing.T) {
	payload := StepPayload{
		RunID:     "1851000000000001",
		BookingID: "1851000000000002",
		Step:      3,
	}

	task := NewStepTask(payload)
	require.Equal(t, TaskLifecycleStep, task.Type())

	var decoded StepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, payload, decoded)
}
