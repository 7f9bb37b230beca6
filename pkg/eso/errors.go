package eso

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCookies is returned by Login when the portal didn't start a
	// session, which usually means the credentials are invalid.
	ErrNoCookies = errors.New("no session cookies after login, possibly invalid credentials")
	// ErrNotAuthenticated is returned when fetching without a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrFormNotReady is returned when the session doesn't hold the
	// consumption form tokens. The caller must login again.
	ErrFormNotReady = errors.New("consumption form not ready")
	// ErrEmptyDataset is returned when a response has no consumption data.
	ErrEmptyDataset = errors.New("empty consumption dataset")
)

// HTTPError is returned when the portal responds with a non-2xx status. A
// redirect from the data endpoint means the session expired.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("eso portal returned status %d for %s", e.StatusCode, e.URL)
}

// Redirect reports whether the status was a redirect.
func (e *HTTPError) Redirect() bool {
	return e.StatusCode >= 300 && e.StatusCode < 400
}
