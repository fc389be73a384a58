package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

var validate = validator.New()

// JobMsg is the body of every work queue message. CorrelationID ties the
// job to the event announced when it finishes.
type JobMsg struct {
	CorrelationID string    `json:"correlation_id" validate:"required,uuid4"`
	ProjectIDs    []string  `json:"project_ids,omitempty" validate:"dive,required"`
	Snapshot      string    `json:"snapshot,omitempty"`
	Cutoff        *float64  `json:"cutoff,omitempty" validate:"omitempty,gte=0,lte=1"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewJobMsg returns a job with a fresh correlation id.
func NewJobMsg(projectIDs ...string) JobMsg {
	return JobMsg{
		CorrelationID: uuid.NewString(),
		ProjectIDs:    projectIDs,
		CreatedAt:     time.Now().UTC(),
	}
}

// DecodeJobMsg parses and validates a message body.
func DecodeJobMsg(body []byte) (JobMsg, error) {
	var msg JobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return JobMsg{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return JobMsg{}, fmt.Errorf("invalid job: %w", err)
	}
	return msg, nil
}

// JobEvent is published on the events exchange when a job finishes.
type JobEvent struct {
	CorrelationID string `json:"correlation_id"`
	Queue         string `json:"queue"`
	Nodes         int    `json:"nodes,omitempty"`
	Edges         int    `json:"edges,omitempty"`
	Predictions   int    `json:"predictions,omitempty"`
	Statuses      int    `json:"statuses,omitempty"`
}
