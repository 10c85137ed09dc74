package domain

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrJobExpired          = fmt.Errorf("%w: job expired", ErrNotFound)
	ErrJobFinalized        = errors.New("job already finalized")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrTokenExpired        = errors.New("auth token expired")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrProviderFailure     = errors.New("provider failure")
	ErrUnknownProvider     = errors.New("unknown provider")
)

// Error codes exposed to API clients and stored on failed jobs.
const (
	CodeValidation          = "validation_error"
	CodeProviderTransient   = "provider_unavailable"
	CodeContentRejected     = "content_rejected"
	CodeProviderTimeout     = "provider_timeout"
	CodeInsufficientCredits = "insufficient_credits"
	CodeDownloadFailed      = "download_failed"
	CodeProviderFailure     = "provider_failure"
	CodeNotFound            = "not_found"
	CodeUnauthorized        = "unauthorized"
	CodeTokenExpired        = "token_expired"
	CodeForbidden           = "forbidden"
	CodeInternal            = "internal"
)

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProviderTransientError wraps a vendor failure worth retrying: network
// errors, rate limits and 5xx responses.
type ProviderTransientError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderTransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient: %v", e.Provider, e.Err)
}

func (e *ProviderTransientError) Unwrap() error { return e.Err }

// RejectionReason groups vendor safety verdicts into categories that get
// their own user message.
type RejectionReason string

const (
	RejectionMinor     RejectionReason = "minor"
	RejectionCelebrity RejectionReason = "celebrity"
	RejectionExplicit  RejectionReason = "explicit"
	RejectionOther     RejectionReason = "other"
)

var rejectionKeywords = []struct {
	reason   RejectionReason
	keywords []string
}{
	{RejectionMinor, []string{"minor", "child", "children", "underage", "under 18", "kid"}},
	{RejectionCelebrity, []string{"celebrity", "public figure", "prominent", "famous", "likeness"}},
	{RejectionExplicit, []string{"explicit", "sexual", "nsfw", "nudity", "nude", "porn"}},
}

// wordPattern matches any of words as whole words.
func wordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var rejectionPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(rejectionKeywords))
	for i, group := range rejectionKeywords {
		out[i] = wordPattern(group.keywords)
	}
	return out
}()

// ClassifyRejection maps free-form vendor reason text to a RejectionReason.
// Keywords match whole words only.
func ClassifyRejection(texts ...string) RejectionReason {
	joined := strings.ToLower(strings.Join(texts, " "))
	for i, re := range rejectionPatterns {
		if re.MatchString(joined) {
			return rejectionKeywords[i].reason
		}
	}
	return RejectionOther
}

// ContentRejectionError is a vendor safety or policy verdict. It is terminal
// and must not be retried or routed to a fallback provider.
type ContentRejectionError struct {
	Provider string
	Reason   RejectionReason
	Details  []string
}

func (e *ContentRejectionError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: content rejected (%s): %s", e.Provider, e.Reason, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("%s: content rejected (%s)", e.Provider, e.Reason)
}

// NewContentRejection classifies details into a ContentRejectionError.
func NewContentRejection(provider string, details ...string) *ContentRejectionError {
	var kept []string
	for _, d := range details {
		if d = strings.TrimSpace(d); d != "" {
			kept = append(kept, d)
		}
	}
	return &ContentRejectionError{Provider: provider, Reason: ClassifyRejection(kept...), Details: kept}
}

// safetyHints mark a vendor failure as a safety verdict. Category words such
// as "minor" alone are not enough; they also appear in ordinary errors.
var safetyHints = wordPattern([]string{
	"nsfw", "safety", "inappropriate", "policy", "policies", "filtered", "blocked",
	"not allowed", "guidelines", "prohibited", "violates", "violation",
	"sexual", "nudity", "nude", "porn", "underage", "celebrity", "public figure",
})

// VendorFailure turns a vendor's failure text into a content rejection when it
// reads like a safety verdict, and into a provider failure otherwise.
func VendorFailure(provider, message string) error {
	if safetyHints.MatchString(strings.ToLower(message)) {
		return NewContentRejection(provider, message)
	}
	if strings.TrimSpace(message) == "" {
		message = "no reason given"
	}
	return fmt.Errorf("%w: %s: %s", ErrProviderFailure, provider, message)
}

// TimeoutError reports an exhausted poll budget. The remote work may still be
// running; nothing was rejected.
type TimeoutError struct {
	Source   string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %d attempts (%s)", e.Source, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// InsufficientCreditsError blocks a pipeline before any provider call.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool { return target == ErrInsufficientCredits }

// DownloadError reports a failed re-fetch of a vendor-hosted artifact.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// PersistenceError marks a failed bookkeeping write (history, artifact
// storage). Callers log it and carry on.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// LedgerInconsistencyError reports a ledger write whose cached balance update
// did not land. The credit history is authoritative.
type LedgerInconsistencyError struct {
	UserID string
	Op     string
	Amount int
	Err    error
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger %s for user %s (%d): %v", e.Op, e.UserID, e.Amount, e.Err)
}

func (e *LedgerInconsistencyError) Unwrap() error { return e.Err }

// JobFailedError is what a poller sees when a job reached the failed state.
type JobFailedError struct {
	JobID   string
	Code    string
	Message string
	Reasons []string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed (%s): %s", e.JobID, e.Code, e.Message)
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var transient *ProviderTransientError
	return errors.As(err, &transient)
}

// IsTerminalFailure reports errors that must not trigger a retry or fallback.
func IsTerminalFailure(err error) bool {
	var validation *ValidationError
	var rejection *ContentRejectionError
	return errors.As(err, &validation) || errors.As(err, &rejection)
}

// TransientStatus reports whether an HTTP status from a vendor is retryable.
func TransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

// ErrorCode maps an error to its stable API code.
func ErrorCode(err error) string {
	var (
		validation *ValidationError
		transient  *ProviderTransientError
		rejection  *ContentRejectionError
		timeout    *TimeoutError
		download   *DownloadError
		jobFailed  *JobFailedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &rejection):
		return CodeContentRejected
	case errors.As(err, &timeout):
		return CodeProviderTimeout
	case errors.As(err, &transient):
		return CodeProviderTransient
	case errors.As(err, &download):
		return CodeDownloadFailed
	case errors.As(err, &jobFailed):
		return jobFailed.Code
	case errors.Is(err, ErrInsufficientCredits):
		return CodeInsufficientCredits
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrProviderFailure):
		return CodeProviderFailure
	default:
		return CodeInternal
	}
}
