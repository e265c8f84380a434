package webhook

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleCard = Card{
	MessageID:      "msg-1",
	NotificationID: "n-1",
	Subject:        "Invoice INV-7 is overdue",
	Body:           "Amount due: 120.00 EUR",
	Sender:         "Billing",
	SentAt:         testNow,
}

func TestSlackFormatter(t *testing.T) {
	raw, err := SlackFormatter{}.Format(sampleCard)
	require.NoError(t, err)

	var p SlackPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "Invoice INV-7 is overdue", p.Text)
	require.Len(t, p.Blocks, 3)
	assert.Equal(t, "header", p.Blocks[0].Type)
	assert.Equal(t, "Amount due: 120.00 EUR", p.Blocks[1].Text.Text)
	assert.Equal(t, "Sent by Billing via Courier", p.Blocks[2].Elements[0].Text)
}

func TestSlackFormatter_TruncatesLongBody(t *testing.T) {
	c := sampleCard
	c.Body = strings.Repeat("x", 5000)
	raw, err := SlackFormatter{}.Format(c)
	require.NoError(t, err)

	var p SlackPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Len(t, []rune(p.Blocks[1].Text.Text), maxSlackSectionLen)
}

func TestSlackFormatter_ValidateResponse(t *testing.T) {
	f := SlackFormatter{}
	assert.NoError(t, f.ValidateResponse(200, []byte("ok")))
	assert.NoError(t, f.ValidateResponse(200, nil))
	assert.EqualError(t, f.ValidateResponse(200, []byte(`{"ok":false,"error":"invalid_token"}`)), "slack: API error: invalid_token")
	assert.EqualError(t, f.ValidateResponse(200, []byte("channel_is_archived")), "slack: API error: channel_is_archived")
	assert.Error(t, f.ValidateResponse(500, nil))
}

func TestTeamsFormatter(t *testing.T) {
	raw, err := TeamsFormatter{}.Format(sampleCard)
	require.NoError(t, err)

	var p TeamsPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "message", p.Type)
	require.Len(t, p.Attachments, 1)
	card := p.Attachments[0].Content
	assert.Equal(t, "AdaptiveCard", card.Type)
	require.Len(t, card.Body, 3)
	assert.Equal(t, "Bolder", card.Body[0].Weight)

	assert.Error(t, TeamsFormatter{}.ValidateResponse(200, []byte("Webhook message delivery failed with error: 400")))
	assert.NoError(t, TeamsFormatter{}.ValidateResponse(202, []byte("1")))
}

func TestDiscordFormatter(t *testing.T) {
	raw, err := DiscordFormatter{}.Format(sampleCard)
	require.NoError(t, err)

	var p DiscordPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Len(t, p.Embeds, 1)
	assert.Equal(t, "Invoice INV-7 is overdue", p.Embeds[0].Title)
	assert.Equal(t, discordColor, p.Embeds[0].Color)
	assert.Equal(t, "2026-03-01T12:00:00Z", p.Embeds[0].Timestamp)
}

func TestGoogleChatFormatter(t *testing.T) {
	raw, err := GoogleChatFormatter{}.Format(sampleCard)
	require.NoError(t, err)

	var p GoogleChatPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Len(t, p.Cards, 1)
	assert.Equal(t, "Invoice INV-7 is overdue", p.Cards[0].Header.Title)
	assert.Equal(t, "Amount due: 120.00 EUR", p.Cards[0].Sections[0].Widgets[0].TextParagraph.Text)
}

func TestGenericFormatter_ValidateResponse(t *testing.T) {
	assert.NoError(t, GenericFormatter{}.ValidateResponse(204, nil))
	assert.EqualError(t, GenericFormatter{}.ValidateResponse(302, []byte(" moved ")), "generic webhook: unexpected status 302: moved")
}
