package errors

import "github.com/pkg/errors"

var (
	// user errors
	ErrUserNotFound      = errors.New("bot user not found")
	ErrUserAlreadyExists = errors.New("bot user already exists")

	// email service errors
	ErrServiceNotFound      = errors.New("email service not found")
	ErrServicesNotAvailable = errors.New("no available email services")

	// mailbox errors
	ErrBoxNotFound       = errors.New("email box not found")
	ErrBoxAlreadyExists  = errors.New("email box already exists")
	ErrBoxNotOwnedByUser = errors.New("email box does not belong to the requested user")
	ErrBoxesNotFound     = errors.New("no email boxes for user")

	// filter errors
	ErrFiltersNotFound = errors.New("box filters not found")

	// imap errors
	ErrCredentialsInvalid = errors.New("email credentials invalid")
	ErrServerTimeout      = errors.New("imap server timeout")
	ErrNotConnected       = errors.New("imap client is not connected")
)
