package walk

import (
	"encoding/json"
	"time"

	"elaview-bookingops/pkg/task"

	"github.com/hibiken/asynq"
)

// TaskLifecycleStep advances one lifecycle walk by a single step.
const TaskLifecycleStep = "booking:lifecycle:step"

type StepPayload struct {
	RunID     string `json:"run_id"`
	BookingID string `json:"booking_id"`
	Step      int    `json:"step"`
}

func NewStepTask(p StepPayload) *asynq.Task {
	payload, _ := json.Marshal(p)
	return asynq.NewTask(TaskLifecycleStep, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Queue(task.QueueLifecycle))
}
