package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart    Stage = "SESSION_START"
	StageSessionDone     Stage = "SESSION_DONE"
	StageSessionCanceled Stage = "SESSION_CANCELED"
	StageSessionError    Stage = "SESSION_ERROR"
	StagePageDone        Stage = "PAGE_DONE"
)

// Outcome is the coarse per-page fetch result used for metrics labels.
type Outcome string

// Supported page outcomes.
const (
	OutcomeSuccess    Outcome = "success"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeConnection Outcome = "connection"
	OutcomeHTTPStatus Outcome = "http_status"
)

// Event captures a single milestone of search progress.
type Event struct {
	// SessionID identifies the search session this event belongs to.
	SessionID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or page milestone occurred.
	Stage Stage
	// Page is the listing page index for PAGE_DONE events.
	Page int
	// URL is the listing page URL for PAGE_DONE events.
	URL string
	// Found carries the number of matching fonts contributed by the page, or
	// the session total for terminal stages.
	Found int
	// Outcome classifies PAGE_DONE fetch results.
	Outcome Outcome
	// Dur captures execution latency for pages and whole sessions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone, StageSessionCanceled, StageSessionError:
	case StagePageDone:
		if e.Outcome == "" {
			return errors.New("page done requires an outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyError maps a fetch failure onto an Outcome label.
func ClassifyError(err error) Outcome {
	fe, ok := sniffer.AsFetchError(err)
	if !ok {
		return OutcomeConnection
	}
	switch fe.Kind {
	case sniffer.FetchTimeout:
		return OutcomeTimeout
	case sniffer.FetchHTTPStatus:
		return OutcomeHTTPStatus
	default:
		return OutcomeConnection
	}
}
