package dto

// WebhookRequest represents the inbound webhook envelope
type WebhookRequest struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent represents one event in the webhook envelope
type WebhookEvent struct {
	Type       string          `json:"type"`
	WebhookID  string          `json:"webhookEventId"`
	Timestamp  int64           `json:"timestamp"`
	ReplyToken string          `json:"replyToken,omitempty"`
	Source     *WebhookSource  `json:"source,omitempty"`
	Message    *WebhookMessage `json:"message,omitempty"`
}

// WebhookSource identifies the sender of an event
type WebhookSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// WebhookMessage represents the message payload of a message event
type WebhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// WebhookResponse summarizes processing of one webhook delivery
type WebhookResponse struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// DispatchResponse summarizes one dispatch scan pass
type DispatchResponse struct {
	Processed  int    `json:"processed"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}
