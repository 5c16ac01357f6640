package fetcher

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/brensch/edgarfsn/internal/period"
)

// Kind classifies why an archive could not be fetched.
type Kind int

const (
	// Network covers transport failures: DNS, connection resets, timeouts.
	Network Kind = iota + 1
	// HTTPStatus means the server answered with something other than 200 OK.
	HTTPStatus
	// InvalidArchive means the body arrived but is not a readable ZIP.
	InvalidArchive
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case HTTPStatus:
		return "http_status"
	case InvalidArchive:
		return "invalid_archive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FetchError describes a failed retrieval of one period's archive.
type FetchError struct {
	Kind       Kind
	Period     period.Period
	URL        string
	StatusCode int // set when Kind is HTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case HTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d from %s", e.Period, e.StatusCode, e.URL)
	default:
		if e.Err == nil {
			return fmt.Sprintf("fetch %s: %s from %s", e.Period, e.Kind, e.URL)
		}
		return fmt.Sprintf("fetch %s: %s from %s: %v", e.Period, e.Kind, e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether repeating the request could plausibly succeed.
func (e *FetchError) Temporary() bool {
	switch e.Kind {
	case Network:
		return true
	case HTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// KindOf returns the Kind of the first FetchError in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the archive server.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == HTTPStatus && fe.StatusCode == http.StatusNotFound
}
