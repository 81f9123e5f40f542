package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAgreementRender renders an agreement PDF after approval.
	TaskTypeAgreementRender = "agreement:render"
)

// AgreementRenderPayload identifies the agreement to render.
type AgreementRenderPayload struct {
	AgreementID int64 `json:"agreementId"`
}

// NewAgreementRenderTask constructs an Asynq task.
func NewAgreementRenderTask(payload AgreementRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAgreementRender, data), nil
}
