// Package outcome defines the closed set of results a single purchase attempt
// can produce and the pure functions that classify responses and errors into it.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// Category is one of the fixed outcome kinds.
type Category int

const (
	Success Category = iota
	SoldOutOrInvalid
	UnknownResponse
	HTTPError
	Timeout
	RequestException
	OtherException

	numCategories
)

// NumCategories is the size of the closed category set.
const NumCategories = int(numCategories)

var categoryNames = [...]string{
	Success:          "Success",
	SoldOutOrInvalid: "Sold Out / Invalid",
	UnknownResponse:  "Unknown Response",
	HTTPError:        "HTTP Error",
	Timeout:          "Timeout",
	RequestException: "Request Exception",
	OtherException:   "Other Exception",
}

var categoryKeys = [...]string{
	Success:          "success",
	SoldOutOrInvalid: "sold_out",
	UnknownResponse:  "unknown_response",
	HTTPError:        "http_error",
	Timeout:          "timeout",
	RequestException: "request_exception",
	OtherException:   "other_exception",
}

// Categories returns every category in report order.
func Categories() []Category {
	out := make([]Category, 0, NumCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Key is the snake_case identifier used in thresholds and machine-readable reports.
func (c Category) Key() string {
	if c < 0 || c >= numCategories {
		return ""
	}
	return categoryKeys[c]
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// CategoryFromKey resolves a snake_case key back to its category.
func CategoryFromKey(key string) (Category, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for c := Category(0); c < numCategories; c++ {
		if categoryKeys[c] == key {
			return c, true
		}
	}
	return 0, false
}

// Outcome is the classification of one attempt.
// StatusCode is only meaningful for HTTPError.
type Outcome struct {
	Category   Category
	StatusCode int
}

// Label renders the outcome the way it appears in the tally breakdown.
func (o Outcome) Label() string {
	if o.Category == HTTPError {
		return fmt.Sprintf("HTTP Error %d", o.StatusCode)
	}
	return o.Category.String()
}

func (o Outcome) String() string { return o.Label() }

// Markers holds the substrings that identify a purchase result in a 200 body.
type Markers struct {
	Success []string
	SoldOut []string
	Invalid []string
	// Field is an optional gjson path. When the body is JSON and the path
	// resolves, markers are matched against that value instead of the whole body.
	Field string
}

// DefaultMarkers mirrors the wording of the reference seckill service.
func DefaultMarkers() Markers {
	return Markers{
		Success: []string{"抢购成功"},
		SoldOut: []string{"已售罄"},
		Invalid: []string{"无效"},
	}
}

// Classify maps a received response to its outcome. It is a pure function of
// its inputs.
func Classify(status int, body string, m Markers) Outcome {
	if status != http.StatusOK {
		return Outcome{Category: HTTPError, StatusCode: status}
	}
	text := m.subject(body)
	switch {
	case containsAny(text, m.Success):
		return Outcome{Category: Success}
	case containsAny(text, m.SoldOut), containsAny(text, m.Invalid):
		return Outcome{Category: SoldOutOrInvalid}
	default:
		return Outcome{Category: UnknownResponse}
	}
}

func (m Markers) subject(body string) string {
	field := strings.TrimSpace(m.Field)
	if field == "" || !gjson.Valid(body) {
		return body
	}
	res := gjson.Get(body, field)
	if !res.Exists() {
		return body
	}
	return res.String()
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// ClassifyError maps a failure that prevented a usable response.
// Timeouts win over any other transport failure.
func ClassifyError(err error) Outcome {
	if err == nil {
		return Outcome{Category: OtherException}
	}
	if IsTimeout(err) {
		return Outcome{Category: Timeout}
	}
	if IsTransport(err) {
		return Outcome{Category: RequestException}
	}
	return Outcome{Category: OtherException}
}

// IsTimeout reports whether err was caused by an elapsed deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// TransportError marks a failure that happened while talking to the target.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the network or the HTTP round trip.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
