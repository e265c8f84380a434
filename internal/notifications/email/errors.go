// Package email is the email channel adapter. It hands pre-rendered
// messages and their attachments to an external.EmailProvider (SES,
// Postmark or the local stub).
package email

import (
	"errors"

	"courier/internal/types"
)

// ErrRecipientBlocked indicates the provider has the recipient on a
// suppression list.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError reports whether err means the recipient is blocked,
// either through ErrRecipientBlocked or an ErrCodeEmailBlocked AppError.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	return types.CodeOf(err) == types.ErrCodeEmailBlocked
}
