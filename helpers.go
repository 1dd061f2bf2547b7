package main

import (
	"errors"
	"regexp"
	"strings"
)

const (
	CommandIDPrefix  string = "c"
	DownloadIDPrefix string = "d"

	// LibraryKeyPrefix is prepended to a book id to build its
	// membership flag key in the persistent store.
	LibraryKeyPrefix = "library_"

	// SessionKey is the flag store key holding the account session secret.
	SessionKey = "session"

	// MinPasswordLength mirrors the backend account policy.
	MinPasswordLength = 8
)

var (
	ErrRemoteUnavailable  = errors.New("remote catalog unavailable")
	ErrStorageUnavailable = errors.New("flag store unavailable")
	ErrPermissionDenied   = errors.New("storage permission denied")
	ErrFlagNotFound       = errors.New("flag not found")
	ErrMissingFileRef     = errors.New("book has no file reference")
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	ErrEmailInUse         = errors.New("email already in use")
	ErrNotLoggedIn        = errors.New("no active session")
)

type missingFieldError string

func (m missingFieldError) Error() string {
	return string(m) + " is required"
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateRegistration is a helper function to check a registration input
// before any call leaves the client.
func ValidateRegistration(name, email, password string) error {
	if len(name) == 0 {
		return missingFieldError("name")
	}
	return ValidateCredentials(email, password)
}

// ValidateCredentials is a helper function to check a login input before
// any call leaves the client.
func ValidateCredentials(email, password string) error {
	if len(email) == 0 {
		return missingFieldError("email")
	}

	if len(password) == 0 {
		return missingFieldError("password")
	}

	if !emailRegex.MatchString(email) {
		return errors.New("email format is not valid")
	}

	if len(password) < MinPasswordLength {
		return ErrInvalidCredentials
	}

	return nil
}

// LibraryKey builds the persistent flag key of a book membership entry.
func LibraryKey(bookID string) string {
	return LibraryKeyPrefix + bookID
}

// BookIDFromKey extracts the book id out of a membership flag key. The
// second result is false for keys outside the library namespace.
func BookIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, LibraryKeyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, LibraryKeyPrefix)
	return id, len(id) > 0
}
