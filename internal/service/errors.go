package service

import "errors"

// Input errors: the caller's fault, surfaced immediately, never retried.
var (
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnauthorized         = errors.New("only the recipient may modify read state")
	ErrInvalidChannel       = errors.New("unknown delivery channel")
)

// ErrPreferencesUnavailable signals that stored preferences could not be
// read. Callers receive the default policy alongside it and are expected
// to proceed: losing a notification is worse than losing personalization.
var ErrPreferencesUnavailable = errors.New("preferences unavailable")
