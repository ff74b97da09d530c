package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskTraceRetentionSweep = "traces.retention.sweep"

const TaskInteractionRecount = "clients.interaction.recount"

// TraceRetentionSweepPayload bounds one sweep. RetentionHours of zero falls
// back to the configured retention.
type TraceRetentionSweepPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// InteractionRecountPayload re-derives a client's interaction counter from
// the persisted traces after manual trace deletions.
type InteractionRecountPayload struct {
	AdvisorID string `json:"advisorId"`
	ClientID  string `json:"clientId"`
}

func NewTraceRetentionSweepTask(payload TraceRetentionSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTraceRetentionSweep, data), nil
}

func ParseTraceRetentionSweepPayload(task *asynq.Task) (TraceRetentionSweepPayload, error) {
	var payload TraceRetentionSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TraceRetentionSweepPayload{}, err
	}
	return payload, nil
}

func NewInteractionRecountTask(payload InteractionRecountPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInteractionRecount, data), nil
}

func ParseInteractionRecountPayload(task *asynq.Task) (InteractionRecountPayload, error) {
	var payload InteractionRecountPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InteractionRecountPayload{}, err
	}
	return payload, nil
}
