package processcheck

import (
	"github.com/google/uuid"

	"eligibility-service/internal/eligibility"
)

// CheckRequest is one accepted webhook. It lives in memory only.
type CheckRequest struct {
	RequestID  string
	CardID     string
	PlanName   string
	CallbackID string
}

func NewCheckRequest(cardID, planName, callbackID string) CheckRequest {
	return CheckRequest{
		RequestID:  uuid.New().String(),
		CardID:     cardID,
		PlanName:   planName,
		CallbackID: callbackID,
	}
}

// Stage is the pipeline position of a request.
type Stage string

const (
	StageReceived   Stage = "received"
	StageResolving  Stage = "resolving"
	StageChecking   Stage = "checking"
	StageDelivering Stage = "delivering"
	StageDone       Stage = "done"
)

// Result summarizes one pipeline run.
type Result struct {
	RequestID   string
	Status      eligibility.Status
	HandlerType string
	Plan        string
	Faulted     bool
	Delivered   bool
	Stage       Stage
}
