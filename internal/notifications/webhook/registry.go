package webhook

import (
	"net/url"
	"strings"
)

// PlatformRegistry maps destination URLs to formatters.
type PlatformRegistry struct {
	formatters map[Platform]PlatformFormatter
}

func NewPlatformRegistry() *PlatformRegistry {
	r := &PlatformRegistry{formatters: make(map[Platform]PlatformFormatter)}
	for _, f := range []PlatformFormatter{SlackFormatter{}, TeamsFormatter{}, DiscordFormatter{}, GoogleChatFormatter{}, GenericFormatter{}} {
		r.formatters[f.Platform()] = f
	}
	return r
}

// Detect picks the platform from the URL host and path:
//   - hooks.slack.com -> slack
//   - discord.com/api/webhooks, discordapp.com/api/webhooks -> discord
//   - *.webhook.office.com, *.logic.azure.com -> teams
//   - chat.googleapis.com -> google_chat
//
// Anything else is generic.
func (r *PlatformRegistry) Detect(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformGeneric
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case host == "hooks.slack.com":
		return PlatformSlack
	case (host == "discord.com" || host == "discordapp.com") && strings.HasPrefix(path, "/api/webhooks"):
		return PlatformDiscord
	case strings.HasSuffix(host, ".webhook.office.com") || strings.HasSuffix(host, ".logic.azure.com"):
		return PlatformTeams
	case host == "chat.googleapis.com":
		return PlatformGoogleChat
	}
	return PlatformGeneric
}

// Get falls back to the generic formatter.
func (r *PlatformRegistry) Get(p Platform) PlatformFormatter {
	if f, ok := r.formatters[p]; ok {
		return f
	}
	return r.formatters[PlatformGeneric]
}
