package storage

import "errors"

var (
	// ErrQuotaExceeded reports that a project payload could not be stored
	// because it is too large or the disk is full.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrProfileLocked reports that another process holds the profile.
	ErrProfileLocked = errors.New("profile is in use by another stepwise process")
)
