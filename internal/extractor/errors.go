package extractor

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRoomList is returned for a plan without rooms
	ErrEmptyRoomList = errors.New("plan has no rooms")
	// ErrMalformedRoom matches every *MalformedRoomError
	ErrMalformedRoom = errors.New("malformed room")
	// ErrMalformedPlan matches every *MalformedPlanError
	ErrMalformedPlan = errors.New("malformed plan")
)

// MalformedRoomError reports a room field that is missing or not an integer
type MalformedRoomError struct {
	PlanID string
	Index  int
	Field  string
	Value  string
}

func (e *MalformedRoomError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("plan %s room %d: missing field %s", e.PlanID, e.Index, e.Field)
	}
	return fmt.Sprintf("plan %s room %d: field %s is not an integer: %q", e.PlanID, e.Index, e.Field, e.Value)
}

func (e *MalformedRoomError) Unwrap() error {
	return ErrMalformedRoom
}

// MalformedPlanError reports a plan or property level field that cannot be read
type MalformedPlanError struct {
	PlanID string
	Field  string
	Value  string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("plan %s: invalid field %s: %q", e.PlanID, e.Field, e.Value)
}

func (e *MalformedPlanError) Unwrap() error {
	return ErrMalformedPlan
}
