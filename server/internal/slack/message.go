package slack

import (
	"encoding/json"

	slackapi "github.com/slack-go/slack"
)

// Attachment fallbacks shown by clients that cannot render attachments.
const (
	customMessageFallback = "Custom Message"
	backlogItemFallback   = "Backlog Item"
)

// Message is one outbound Slack message.
type Message struct {
	Color     string
	IconEmoji string
	IconURL   string
	UserName  string
	Channel   string

	// LinkNames makes Slack turn @channel and user names into mentions.
	LinkNames bool

	// Text is the default summary line. Never empty for composed messages.
	Text string

	// CustomText is nil unless a custom template is configured.
	CustomText *string

	// BacklogItemTexts holds one rendered text per backlog entry.
	BacklogItemTexts []string
}

// payload is the JSON body accepted by Slack Incoming Webhooks.
type payload struct {
	Color       string       `json:"color,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Username    string       `json:"username,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	LinkNames   bool         `json:"link_names"`
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

// attachment hides the Blocks field of slackapi.Attachment, which always
// encodes (as null when empty).
type attachment struct {
	slackapi.Attachment
	Blocks *slackapi.Blocks `json:"blocks,omitempty"`
}

// JSON encodes m as a webhook request body.
func (m *Message) JSON() ([]byte, error) {
	p := payload{
		Color:     m.Color,
		IconEmoji: m.IconEmoji,
		IconURL:   m.IconURL,
		Username:  m.UserName,
		Channel:   m.Channel,
		LinkNames: m.LinkNames,
		Text:      m.Text,
	}
	if m.CustomText != nil {
		p.Attachments = append(p.Attachments, m.attachment(customMessageFallback, *m.CustomText))
	}
	for _, text := range m.BacklogItemTexts {
		p.Attachments = append(p.Attachments, m.attachment(backlogItemFallback, text))
	}
	return json.Marshal(p)
}

func (m *Message) attachment(fallback, text string) attachment {
	return attachment{Attachment: slackapi.Attachment{
		Color:      m.Color,
		Fallback:   fallback,
		Text:       text,
		MarkdownIn: []string{"text"},
	}}
}
