package openlaw

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrDecode is returned when a response is neither decodable JSON nor XML.
var ErrDecode = errors.New("openlaw: undecodable response")

// ErrMissingOC is returned by New when no OC key is configured.
var ErrMissingOC = errors.New("openlaw: OC key is required (set OPENLAW_OC or pass --oc)")

// StatusError is a non-2xx response from the DRF endpoints.
type StatusError struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string
	Target      string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d @ %s (CT=%s) :: %s", e.StatusCode, e.URL, e.ContentType, e.Body)
	if e.Target == TargetPrecedent && (e.StatusCode == 403 || e.StatusCode == 404) {
		msg += " (the precedent JSON service may not be approved for this OC key)"
	}
	return msg
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// bodySnippet returns at most maxErrorBody bytes of body, cut on a rune
// boundary.
func bodySnippet(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	n := maxErrorBody
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return string(body[:n])
}
