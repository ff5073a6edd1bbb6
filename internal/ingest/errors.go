package ingest

import "errors"

// Reason codes recorded on run errors and article rows. These are stable
// strings consumed by operators and downstream tooling.
const (
	ReasonRobotsDisallowed = "robots_disallowed"
	ReasonTransientFetch   = "transient_fetch"
	ReasonStrategyFailed   = "strategy_exhausted"
	ReasonQualityLength    = "quality_min_length"
	ReasonQualityDate      = "quality_no_date"
	ReasonQualityLanguage  = "quality_language"
	ReasonDuplicate        = "duplicate"
	ReasonFingerprintMoved = "fingerprint_changed"
	ReasonHeadlessBudget   = "headless_budget_exhausted"
	ReasonPublishFailed    = "publish_failed"
	ReasonNERUnavailable   = "ner_unavailable"
	ReasonStorageOutage    = "storage_unavailable"
	ReasonExtractFailed    = "extract_failed"
)

// Sentinel errors recognized across pipeline stages.
var (
	// ErrNotModified reports a 304 response; no new content, not a failure.
	ErrNotModified = errors.New("not modified")

	// ErrRobotsDisallowed reports that robots.txt forbids the URL. Fatal for
	// that URL only.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrStrategyExhausted reports that every configured strategy failed for
	// a source. Fails the run, never crashes the process.
	ErrStrategyExhausted = errors.New("all strategies exhausted")

	// ErrBudgetExhausted reports the headless rendering budget ran out.
	ErrBudgetExhausted = errors.New("headless budget exhausted")

	// ErrStoreUnavailable distinguishes a store outage (aborts the run) from
	// per-candidate write failures (recorded and skipped).
	ErrStoreUnavailable = errors.New("store unavailable")
)

// QualityError is a rejection from the quality gate; non-fatal, recorded with
// its reason code.
type QualityError struct {
	Reason string
	Detail string
}

func (e *QualityError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

// AsQuality unwraps a QualityError if err carries one.
func AsQuality(err error) (*QualityError, bool) {
	var q *QualityError
	if errors.As(err, &q) {
		return q, true
	}
	return nil, false
}
