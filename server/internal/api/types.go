package api

import "github.com/obsidianstack/slacknotify/server/internal/history"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status            string `json:"status"`
	NodeID            string `json:"node_id"`
	Storage           string `json:"storage"`
	NotificationCount int    `json:"notification_count"`
	DeliveryCount     int    `json:"delivery_count"`
}

// NotificationResponse describes one configured notification. Webhook and
// proxy URLs are secrets and are only reported as present or absent.
type NotificationResponse struct {
	Name                 string `json:"name"`
	Channel              string `json:"channel,omitempty"`
	UserName             string `json:"user_name,omitempty"`
	Color                string `json:"color,omitempty"`
	IconEmoji            string `json:"icon_emoji,omitempty"`
	IconURL              string `json:"icon_url,omitempty"`
	NotifyChannel        bool   `json:"notify_channel"`
	LinkNames            bool   `json:"link_names"`
	CustomMessage        bool   `json:"custom_message"`
	BacklogItemMessage   bool   `json:"backlog_item_message"`
	BacklogSize          int    `json:"backlog_size"`
	ProxyConfigured      bool   `json:"proxy_configured"`
	WebhookURLConfigured bool   `json:"webhook_url_configured"`
}

// DeliveriesResponse is the payload for GET /api/v1/deliveries and the data
// of the live feed.
type DeliveriesResponse struct {
	Deliveries  []history.Record `json:"deliveries"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// ExecuteFailure is the 502 body of a failed execution.
type ExecuteFailure struct {
	Error    string         `json:"error"`
	Delivery history.Record `json:"delivery"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
