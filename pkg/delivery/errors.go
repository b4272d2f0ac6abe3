package delivery

import "errors"

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSettingsNotFound  = errors.New("notification settings not found")
	ErrRecordNotFound    = errors.New("delivery record not found")
	ErrRecordExists      = errors.New("delivery record already exists")
	ErrInvalidRecord     = errors.New("invalid delivery record")

	ErrFailedToLoadContact  = errors.New("failed to load recipient contact")
	ErrFailedToLoadSettings = errors.New("failed to load notification settings")
	ErrFailedToCreateRecord = errors.New("failed to create delivery record")
	ErrFailedToUpdateRecord = errors.New("failed to update delivery record")
	ErrFailedToFindRecord   = errors.New("failed to find delivery record")

	ErrMissingTrackingID = errors.New("event has no tracking id")
)
