package update

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/byteness/credsession/quality"
)

// SessionTTL is the hard cap on a session's lifetime from creation,
// embedded in both the sealed token and the session identifier.
const SessionTTL = 15 * time.Minute

// Config holds the transaction API's tunables. The zero value is usable:
// Quality defaults per quality.Config's own zero-value behavior, and a nil
// IntentIssueLimiter means InitIntent is unthrottled.
type Config struct {
	Quality quality.Config

	// IntentIssueLimiter, if non-nil, throttles InitIntent. Every call
	// draws from this one limiter whatever the acting identity; Core keeps
	// no per-identity limiters. A call the limiter cannot admit right away
	// fails with a Wait error carrying the instant it would be admitted.
	IntentIssueLimiter *rate.Limiter
}
