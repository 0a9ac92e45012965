package sendcallback

import "eligibility-service/internal/eligibility"

// Payload is the body posted to the collector.
type Payload struct {
	CallbackID string             `json:"numero"`
	Status     eligibility.Status `json:"status"`
}

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"

	ResultDelivered = "delivered"
	ResultExhausted = "exhausted"
	ResultAborted   = "aborted"
)
