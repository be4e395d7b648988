package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Payload is the serializable record handed to the job runner for one
// reminder. It carries everything the worker needs so the fired job never
// has to dereference back into Canvas.
type Payload struct {
	Email          string    `json:"email"`
	PlannableID    int64     `json:"plannable_id"`
	CourseName     string    `json:"course_name"`
	AssignmentName string    `json:"assignment_name"`
	Deadline       time.Time `json:"deadline"`
	Grade          float64   `json:"grade"`
}

// Validate checks the payload before it crosses the job runner boundary
func (p Payload) Validate() error {
	if p.Email == "" {
		return errors.New("payload missing recipient email")
	}
	if p.PlannableID <= 0 {
		return errors.New("payload missing plannable id")
	}
	if p.AssignmentName == "" {
		return errors.New("payload missing assignment name")
	}
	if p.CourseName == "" {
		return errors.New("payload missing course name")
	}
	if p.Deadline.IsZero() {
		return errors.New("payload missing deadline")
	}
	return nil
}

// Marshal encodes the payload as the single string argument of a task
func (p Payload) Marshal() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(raw), nil
}

// ParsePayload decodes and validates a payload received by the worker
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}
