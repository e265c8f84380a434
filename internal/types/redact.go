package types

import (
	"net/url"
	"strings"
)

// RedactEmail masks all but the first character of the local part:
// "john@gmail.com" becomes "j***@gmail.com". A string without "@" is masked
// entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// RedactPhone keeps the leading "+" and the last two digits.
func RedactPhone(phone string) string {
	digits := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if len(digits) <= 2 {
		return "***"
	}
	prefix := ""
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		prefix = "+"
	}
	return prefix + "***" + digits[len(digits)-2:]
}

// RedactURL keeps scheme and host; path and query often carry tokens.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}

// RedactAddress picks the masking that fits the shape of addr.
func RedactAddress(addr string) string {
	switch {
	case addr == "":
		return ""
	case strings.Contains(addr, "://"):
		return RedactURL(addr)
	case strings.Contains(addr, "@"):
		return RedactEmail(addr)
	default:
		return RedactPhone(addr)
	}
}
