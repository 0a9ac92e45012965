package api

import "eligibility-service/internal/common/validation"

// WebhookRequest is the inbound eligibility request.
type WebhookRequest struct {
	CardID     string `json:"numero_carterinha"`
	PlanName   string `json:"plan_name"`
	CallbackID string `json:"numero"`
}

type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Code   string                       `json:"code"`
	Detail []validation.ValidationError `json:"detail"`
}

type HealthResponse struct {
	Status         string   `json:"status"`
	Service        string   `json:"service"`
	SupportedPlans []string `json:"supported_plans"`
}

type PlansResponse struct {
	SupportedPlans []string `json:"supported_plans"`
	Total          int      `json:"total"`
}

const (
	AcceptedMessage = "Processamento iniciado"

	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
)

// webhookSchema accepts any string for each field, empty included.
var webhookSchema = validation.MustSchema(`{
	"type": "object",
	"required": ["numero_carterinha", "plan_name", "numero"],
	"properties": {
		"numero_carterinha": {"type": "string"},
		"plan_name": {"type": "string"},
		"numero": {"type": "string"}
	}
}`)
