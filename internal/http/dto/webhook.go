package dto

type WebhookAcceptedResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Platform  string `json:"platform"`
	EventType string `json:"event_type"`
}

type WebhookIgnoredResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}
