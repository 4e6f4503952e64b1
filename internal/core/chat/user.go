package chat

import (
	"errors"
	"regexp"
)

var ErrInvalidUser = errors.New("user id must be 1-128 letters, digits, '.', '_', '@' or '-'")

var userPattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,128}$`)

// ValidateUserID reports whether userID can name a conversation. Ids double
// as file names in some stores, so path separators and dot-only names are
// rejected.
func ValidateUserID(userID string) error {
	switch {
	case userID == "":
		return ErrEmptyUser
	case userID == "." || userID == "..":
		return ErrInvalidUser
	case !userPattern.MatchString(userID):
		return ErrInvalidUser
	}
	return nil
}
