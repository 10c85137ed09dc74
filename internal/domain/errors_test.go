package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyRejection(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  RejectionReason
	}{
		{name: "minor", texts: []string{"The input image appears to contain a child."}, want: RejectionMinor},
		{name: "celebrity", texts: []string{"Prompt references a Public Figure"}, want: RejectionCelebrity},
		{name: "explicit", texts: []string{"NSFW content detected"}, want: RejectionExplicit},
		{name: "first match wins", texts: []string{"sexual content", "underage subject"}, want: RejectionMinor},
		{name: "unknown", texts: []string{"blocked by policy"}, want: RejectionOther},
		{name: "whole words only", texts: []string{"kidney scan flagged, famously unclear"}, want: RejectionOther},
		{name: "empty", want: RejectionOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRejection(tt.texts...); got != tt.want {
				t.Fatalf("ClassifyRejection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: NewValidationError("prompt", "required"), want: CodeValidation},
		{name: "wrapped rejection", err: fmt.Errorf("step 1: %w", NewContentRejection("veo", "minor")), want: CodeContentRejected},
		{name: "timeout", err: &TimeoutError{Source: "veo", Attempts: 3}, want: CodeProviderTimeout},
		{name: "transient", err: &ProviderTransientError{Provider: "qwen", StatusCode: 503, Err: errors.New("busy")}, want: CodeProviderTransient},
		{name: "credits", err: &InsufficientCreditsError{Required: 1}, want: CodeInsufficientCredits},
		{name: "expired job", err: ErrJobExpired, want: CodeNotFound},
		{name: "job failed carries code", err: &JobFailedError{Code: CodeContentRejected}, want: CodeContentRejected},
		{name: "other", err: errors.New("boom"), want: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Fatalf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTerminalFailuresAreNotTransient(t *testing.T) {
	rejection := NewContentRejection("gemini", "celebrity likeness")
	if !IsTerminalFailure(rejection) {
		t.Fatalf("rejection should be terminal")
	}
	if IsTransient(rejection) {
		t.Fatalf("rejection should not be transient")
	}
	transient := &ProviderTransientError{Provider: "qwen", Err: errors.New("reset")}
	if IsTerminalFailure(transient) {
		t.Fatalf("transient error should not be terminal")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", transient)) {
		t.Fatalf("wrapped transient error should be transient")
	}
}

func TestJobTransitions(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	job := &Job{ID: "01J", Kind: JobKindImage, Status: JobStatusProcessing, CreatedAt: created}

	done := job.Complete(created.Add(time.Minute), &Artifact{Base64: "AA==", MimeType: "image/png"}, "qwen")
	if job.Status != JobStatusProcessing {
		t.Fatalf("Complete must not mutate the receiver")
	}
	if !done.Status.Terminal() || done.CompletedAt == nil || done.Method != "qwen" {
		t.Fatalf("unexpected completed job: %+v", done)
	}

	failed := job.Fail(created.Add(time.Minute), NewContentRejection("veo", "Photo appears to depict a minor"))
	if failed.FailedAt == nil || failed.ErrorCode != CodeContentRejected || len(failed.Reasons) != 1 {
		t.Fatalf("unexpected failed job: %+v", failed)
	}
	if failed.Rejection != RejectionMinor {
		t.Fatalf("rejection = %q, want minor", failed.Rejection)
	}
}

func TestVendorFailureNeedsSafetyVerdict(t *testing.T) {
	tests := []struct {
		message    string
		wantReason RejectionReason
		rejected   bool
	}{
		{message: "minor internal error", rejected: false},
		{message: "model likeness head failed to load", rejected: false},
		{message: "Blocked by safety filter: subject appears to be a minor", rejected: true, wantReason: RejectionMinor},
		{message: "Output violates our usage policies (celebrity)", rejected: true, wantReason: RejectionCelebrity},
		{message: "NSFW content detected", rejected: true, wantReason: RejectionExplicit},
		{message: "", rejected: false},
	}
	for _, tt := range tests {
		err := VendorFailure("faceswap", tt.message)
		var rejection *ContentRejectionError
		if got := errors.As(err, &rejection); got != tt.rejected {
			t.Fatalf("%q: rejected = %v, want %v (err %v)", tt.message, got, tt.rejected, err)
		}
		if !tt.rejected {
			if !errors.Is(err, ErrProviderFailure) || IsTerminalFailure(err) {
				t.Fatalf("%q: err = %v, want a retriable provider failure", tt.message, err)
			}
			continue
		}
		if rejection.Reason != tt.wantReason {
			t.Fatalf("%q: reason = %q, want %q", tt.message, rejection.Reason, tt.wantReason)
		}
	}
}
