package webhook

import "time"

// Platform identifies a webhook destination platform.
type Platform string

const (
	PlatformGeneric    Platform = "generic"
	PlatformSlack      Platform = "slack"
	PlatformDiscord    Platform = "discord"
	PlatformTeams      Platform = "teams"
	PlatformGoogleChat Platform = "google_chat"
)

// Card is the platform-neutral view of a message that formatters render.
type Card struct {
	MessageID      string
	NotificationID string
	Subject        string
	Body           string
	Sender         string
	SentAt         time.Time
}

// PlatformFormatter turns a Card into a platform-specific JSON body.
type PlatformFormatter interface {
	Platform() Platform
	Format(c Card) ([]byte, error)
	// ValidateResponse catches soft failures such as Slack answering 200
	// with "ok": false.
	ValidateResponse(statusCode int, body []byte) error
}

// --- Slack (Block Kit) ---

type SlackPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type     string       `json:"type"`
	Text     *SlackText   `json:"text,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// --- Microsoft Teams (Adaptive Cards via Workflows) ---

type TeamsPayload struct {
	Type        string            `json:"type"`
	Attachments []TeamsAttachment `json:"attachments"`
}

type TeamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

type AdaptiveCard struct {
	Type    string         `json:"type"`
	Version string         `json:"version"`
	Body    []AdaptiveItem `json:"body"`
}

type AdaptiveItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Size     string `json:"size,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Wrap     bool   `json:"wrap,omitempty"`
	IsSubtle bool   `json:"isSubtle,omitempty"`
}

// --- Discord (embeds) ---

type DiscordPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

// --- Google Chat (cards) ---

type GoogleChatPayload struct {
	Text  string       `json:"text,omitempty"`
	Cards []GoogleCard `json:"cards"`
}

type GoogleCard struct {
	Header   GoogleHeader    `json:"header"`
	Sections []GoogleSection `json:"sections"`
}

type GoogleHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

type GoogleSection struct {
	Widgets []GoogleWidget `json:"widgets"`
}

type GoogleWidget struct {
	TextParagraph *GoogleTextParagraph `json:"textParagraph,omitempty"`
}

type GoogleTextParagraph struct {
	Text string `json:"text"`
}

// --- Generic ---

// GenericPayload is the stable contract for endpoints that are not a known
// chat platform.
type GenericPayload struct {
	MessageID      string    `json:"message_id"`
	NotificationID string    `json:"notification_id"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Sender         string    `json:"sender,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}
