package embedding

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable means a transient remote condition survived every retry.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrRejected means the provider refused the request for a non-transient
	// reason (authentication, malformed request); retrying cannot help.
	ErrRejected = errors.New("embedding request rejected")

	// ErrShape means a returned batch violated the dimensionality contract.
	// Accepting such a batch would corrupt the index irreversibly, so the run
	// aborts instead.
	ErrShape = errors.New("embedding shape violation")
)

// RemoteError carries the HTTP status of a failed provider call so it can be
// classified without string matching.
type RemoteError struct {
	Provider string
	Status   int
	Body     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s embedding error %d: %s", e.Provider, e.Status, e.Body)
}

// Transient reports whether an embedding call failure is worth retrying:
// rate limits, timeouts and server-side errors are; authentication and
// request-shape problems are not. Unknown failures count as permanent so a
// broken request is surfaced instead of retried forever.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status == 429 || re.Status >= 500
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return true
	case strings.Contains(e, "timeout"), strings.Contains(e, "timed out"),
		strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "connection reset"):
		return true
	default:
		return false
	}
}
