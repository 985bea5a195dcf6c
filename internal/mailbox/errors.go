package mailbox

import (
	"errors"
	"fmt"
)

// AuthError reports that a server rejected the account credentials.
type AuthError struct {
	Server  string
	Message string
	// Err is the server's rejection, when there is one.
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
