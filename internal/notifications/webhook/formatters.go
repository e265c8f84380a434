package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// Slack section text is limited to 3000 characters.
	maxSlackSectionLen = 3000
	// Discord embed descriptions are limited to 4096 characters.
	maxDiscordDescriptionLen = 4096
	// Courier blue.
	discordColor = 0x2D6CDF
)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func truncateBody(b []byte) string {
	return truncate(strings.TrimSpace(string(b)), 200)
}

func footer(c Card) string {
	if c.Sender != "" {
		return fmt.Sprintf("Sent by %s via Courier", c.Sender)
	}
	return "Sent via Courier"
}

// SlackFormatter renders Block Kit.
type SlackFormatter struct{}

func (SlackFormatter) Platform() Platform { return PlatformSlack }

func (SlackFormatter) Format(c Card) ([]byte, error) {
	payload := SlackPayload{
		Text: c.Subject,
		Blocks: []SlackBlock{
			{Type: "header", Text: &SlackText{Type: "plain_text", Text: truncate(c.Subject, 150)}},
		},
	}
	if c.Body != "" {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: truncate(c.Body, maxSlackSectionLen)},
		})
	}
	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type:     "context",
		Elements: []*SlackText{{Type: "mrkdwn", Text: footer(c)}},
	})
	return json.Marshal(payload)
}

// ValidateResponse accepts "ok" plain text and rejects {"ok": false} and
// the known plain-text error bodies.
func (SlackFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", statusCode)
	}
	text := strings.TrimSpace(string(body))
	if text == "" || text == "ok" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	switch text {
	case "no_text", "channel_not_found", "channel_is_archived", "invalid_payload", "too_many_attachments", "no_service":
		return fmt.Errorf("slack: API error: %s", text)
	}
	return nil
}

// TeamsFormatter renders an Adaptive Card for Power Automate workflows.
type TeamsFormatter struct{}

func (TeamsFormatter) Platform() Platform { return PlatformTeams }

func (TeamsFormatter) Format(c Card) ([]byte, error) {
	card := AdaptiveCard{
		Type:    "AdaptiveCard",
		Version: "1.4",
		Body: []AdaptiveItem{
			{Type: "TextBlock", Text: c.Subject, Size: "Large", Weight: "Bolder", Wrap: true},
		},
	}
	if c.Body != "" {
		card.Body = append(card.Body, AdaptiveItem{Type: "TextBlock", Text: c.Body, Wrap: true})
	}
	card.Body = append(card.Body, AdaptiveItem{Type: "TextBlock", Text: footer(c), Size: "Small", IsSubtle: true})

	return json.Marshal(TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{
			{ContentType: "application/vnd.microsoft.card.adaptive", Content: card},
		},
	})
}

func (TeamsFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("teams: unexpected status %d: %s", statusCode, truncateBody(body))
	}
	// Legacy connectors answer 200 with an error string instead of "1".
	if text := strings.TrimSpace(string(body)); strings.Contains(text, "Webhook message delivery failed") {
		return fmt.Errorf("teams: %s", truncate(text, 200))
	}
	return nil
}

// DiscordFormatter renders a single embed.
type DiscordFormatter struct{}

func (DiscordFormatter) Platform() Platform { return PlatformDiscord }

func (DiscordFormatter) Format(c Card) ([]byte, error) {
	embed := DiscordEmbed{
		Title:       truncate(c.Subject, 256),
		Description: truncate(c.Body, maxDiscordDescriptionLen),
		Color:       discordColor,
		Footer:      &DiscordFooter{Text: footer(c)},
	}
	if !c.SentAt.IsZero() {
		embed.Timestamp = c.SentAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(DiscordPayload{
		Username: "Courier",
		Content:  truncate(c.Subject, 2000),
		Embeds:   []DiscordEmbed{embed},
	})
}

func (DiscordFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("discord: unexpected status %d: %s", statusCode, truncateBody(body))
	}
	return nil
}

// GoogleChatFormatter renders a card with a header and one text section.
type GoogleChatFormatter struct{}

func (GoogleChatFormatter) Platform() Platform { return PlatformGoogleChat }

func (GoogleChatFormatter) Format(c Card) ([]byte, error) {
	card := GoogleCard{
		Header: GoogleHeader{Title: c.Subject, Subtitle: footer(c)},
	}
	if c.Body != "" {
		card.Sections = []GoogleSection{{Widgets: []GoogleWidget{{TextParagraph: &GoogleTextParagraph{Text: c.Body}}}}}
	} else {
		card.Sections = []GoogleSection{}
	}
	return json.Marshal(GoogleChatPayload{Text: c.Subject, Cards: []GoogleCard{card}})
}

func (GoogleChatFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("google chat: unexpected status %d: %s", statusCode, truncateBody(body))
	}
	return nil
}

// GenericFormatter emits GenericPayload unchanged.
type GenericFormatter struct{}

func (GenericFormatter) Platform() Platform { return PlatformGeneric }

func (GenericFormatter) Format(c Card) ([]byte, error) {
	return json.Marshal(GenericPayload{
		MessageID:      c.MessageID,
		NotificationID: c.NotificationID,
		Subject:        c.Subject,
		Body:           c.Body,
		Sender:         c.Sender,
		SentAt:         c.SentAt.UTC(),
	})
}

func (GenericFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("generic webhook: unexpected status %d: %s", statusCode, truncateBody(body))
}
